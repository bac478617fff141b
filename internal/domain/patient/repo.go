package patient

import "context"

type Repository interface {
	// Lookup is the billing desk lookup by patient id.
	Lookup(ctx context.Context, id string) (*Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]*Patient, error)
}

type MetricRepository interface {
	ListByPatient(ctx context.Context, patientID string) ([]*HealthMetric, error)
	Create(ctx context.Context, m *HealthMetric) (*HealthMetric, error)
	Update(ctx context.Context, m *HealthMetric) (*HealthMetric, error)
	Delete(ctx context.Context, id string) error
}
