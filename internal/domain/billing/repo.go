package billing

import "context"

type Repository interface {
	// GetByPatient returns the patient's bill, or an error when none exists.
	GetByPatient(ctx context.Context, patientID string) (*Bill, error)
	AddSubBill(ctx context.Context, req SubBillRequest) (*Bill, error)
	Checkout(ctx context.Context, patientID string, req CheckoutRequest) (*Bill, error)
}

type CatalogRepository interface {
	ListHospitalServices(ctx context.Context) ([]CatalogEntry, error)
	ListTreatments(ctx context.Context) ([]CatalogEntry, error)
}
