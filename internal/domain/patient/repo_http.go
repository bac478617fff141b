package patient

import (
	"context"
	"encoding/json"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

const (
	lookupPrefix  = "/api/bills/patient"
	detailPrefix  = "/api/patients/patients"
	doctorPrefix  = "/api/doctor"
	metricsPrefix = "/api/patientsMedical"
)

type httpRepo struct {
	api *apiclient.Client
}

func NewHTTPRepo(api *apiclient.Client) Repository {
	return &httpRepo{api: api}
}

func (r *httpRepo) Lookup(ctx context.Context, id string) (*Patient, error) {
	var env apiclient.DataOnly
	if err := r.api.Get(ctx, apiclient.Path(lookupPrefix, id), &env); err != nil {
		return nil, err
	}
	var p Patient
	if err := env.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *httpRepo) GetByID(ctx context.Context, id string) (*Patient, error) {
	var raw json.RawMessage
	if err := r.api.Get(ctx, apiclient.Path(detailPrefix, id), &raw, apiclient.Authenticated()); err != nil {
		return nil, err
	}
	var p Patient
	if err := apiclient.Unwrap(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" && p.FullName == "" {
		return nil, apiclient.ErrNotFound
	}
	return &p, nil
}

func (r *httpRepo) ListByDoctor(ctx context.Context, doctorID string) ([]*Patient, error) {
	var raw json.RawMessage
	path := apiclient.Path(doctorPrefix, doctorID) + "/patients"
	if err := r.api.Get(ctx, path, &raw, apiclient.Authenticated()); err != nil {
		return nil, err
	}
	var items []*Patient
	if err := apiclient.Unwrap(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type httpMetricRepo struct {
	api *apiclient.Client
}

func NewHTTPMetricRepo(api *apiclient.Client) MetricRepository {
	return &httpMetricRepo{api: api}
}

func (r *httpMetricRepo) ListByPatient(ctx context.Context, patientID string) ([]*HealthMetric, error) {
	var raw json.RawMessage
	if err := r.api.Get(ctx, apiclient.Path(metricsPrefix, patientID), &raw, apiclient.Authenticated()); err != nil {
		return nil, err
	}
	var items []*HealthMetric
	if err := apiclient.Unwrap(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *httpMetricRepo) Create(ctx context.Context, m *HealthMetric) (*HealthMetric, error) {
	var raw json.RawMessage
	if err := r.api.Post(ctx, metricsPrefix+"/", m, &raw, apiclient.Authenticated()); err != nil {
		return nil, err
	}
	return decodeMetric(raw, m)
}

func (r *httpMetricRepo) Update(ctx context.Context, m *HealthMetric) (*HealthMetric, error) {
	var raw json.RawMessage
	if err := r.api.Put(ctx, apiclient.Path(metricsPrefix, m.ID), m, &raw, apiclient.Authenticated()); err != nil {
		return nil, err
	}
	return decodeMetric(raw, m)
}

func (r *httpMetricRepo) Delete(ctx context.Context, id string) error {
	return r.api.Delete(ctx, apiclient.Path(metricsPrefix, id), apiclient.Authenticated())
}

// decodeMetric returns the backend's copy of the metric, or sent when the
// response carries no body.
func decodeMetric(raw json.RawMessage, sent *HealthMetric) (*HealthMetric, error) {
	out := *sent
	if err := apiclient.Unwrap(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
