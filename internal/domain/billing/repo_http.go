package billing

import (
	"context"
	"fmt"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

const (
	billByPatientPrefix = "/api/bills/bill/patient"
	billPath            = "/api/bills/bill"
	checkoutPrefix      = "/api/bills/checkout"
	servicesPath        = "/api/bills/hospitalservices"
	treatmentsPath      = "/api/bills/treatments"
)

type httpRepo struct {
	api *apiclient.Client
	// sendAuth attaches the bearer token to billing calls. The billing
	// endpoints have historically been called without one.
	sendAuth bool
}

// NewHTTPRepo returns a Repository and CatalogRepository backed by the
// clinic REST API.
func NewHTTPRepo(api *apiclient.Client, sendAuth bool) *httpRepo {
	return &httpRepo{api: api, sendAuth: sendAuth}
}

func (r *httpRepo) auth() apiclient.RequestOption {
	return apiclient.AuthenticatedIf(r.sendAuth)
}

func (r *httpRepo) GetByPatient(ctx context.Context, patientID string) (*Bill, error) {
	var env apiclient.Envelope
	if err := r.api.Get(ctx, apiclient.Path(billByPatientPrefix, patientID), &env, r.auth()); err != nil {
		return nil, err
	}
	return decodeBill(&env)
}

func (r *httpRepo) AddSubBill(ctx context.Context, req SubBillRequest) (*Bill, error) {
	var env apiclient.Envelope
	if err := r.api.Post(ctx, billPath, req, &env, r.auth()); err != nil {
		return nil, err
	}
	return decodeBill(&env)
}

func (r *httpRepo) Checkout(ctx context.Context, patientID string, req CheckoutRequest) (*Bill, error) {
	var env apiclient.Envelope
	if err := r.api.Put(ctx, apiclient.Path(checkoutPrefix, patientID), req, &env, r.auth()); err != nil {
		return nil, err
	}
	return decodeBill(&env)
}

func (r *httpRepo) ListHospitalServices(ctx context.Context) ([]CatalogEntry, error) {
	return r.listCatalog(ctx, servicesPath)
}

func (r *httpRepo) ListTreatments(ctx context.Context) ([]CatalogEntry, error) {
	return r.listCatalog(ctx, treatmentsPath)
}

func (r *httpRepo) listCatalog(ctx context.Context, path string) ([]CatalogEntry, error) {
	var env apiclient.Envelope
	if err := r.api.Get(ctx, path, &env, r.auth()); err != nil {
		return nil, err
	}
	var items []CatalogEntry
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// decodeBill requires a bill in the envelope; a successful envelope without
// one is reported as ErrUnsuccessful.
func decodeBill(env *apiclient.Envelope) (*Bill, error) {
	var b Bill
	if err := env.Decode(&b); err != nil {
		return nil, err
	}
	if b.ID == "" {
		return nil, fmt.Errorf("%w: response carried no bill", apiclient.ErrUnsuccessful)
	}
	return &b, nil
}
