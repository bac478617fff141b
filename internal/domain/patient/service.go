package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinitech/frontoffice/internal/platform/generation"
)

const lookupKey = "patient-lookup"

type Service struct {
	patients Repository
	metrics  MetricRepository
	gen      *generation.Tracker
	logger   zerolog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(patients Repository, metrics MetricRepository, opts ...ServiceOption) *Service {
	s := &Service{
		patients: patients,
		metrics:  metrics,
		gen:      generation.NewTracker(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Lookup fetches a patient for the billing desk. Only the most recent lookup
// may return a record; earlier ones still in flight get
// generation.ErrStaleResponse.
func (s *Service) Lookup(ctx context.Context, id string) (*Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidID
	}
	tk := s.gen.Begin(lookupKey)
	p, err := s.patients.Lookup(ctx, id)
	if staleErr := s.gen.Check(tk); staleErr != nil {
		s.logger.Debug().Str("patient_id", id).Msg("dropping superseded patient lookup")
		return nil, staleErr
	}
	if err != nil {
		return nil, fmt.Errorf("lookup patient %s: %w", id, err)
	}
	return p, nil
}

// Detail fetches the patient page record.
func (s *Service) Detail(ctx context.Context, id string) (*Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidID
	}
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}

// ListForDoctor returns the doctor's patients sorted by name.
func (s *Service) ListForDoctor(ctx context.Context, doctorID string) ([]*Patient, error) {
	if doctorID == "" {
		return nil, fmt.Errorf("doctor id is required")
	}
	items, err := s.patients.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list patients for doctor %s: %w", doctorID, err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].FullName) < strings.ToLower(items[j].FullName)
	})
	return items, nil
}

// ListMetrics returns the patient's metrics, newest first.
func (s *Service) ListMetrics(ctx context.Context, patientID string) ([]*HealthMetric, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidID
	}
	items, err := s.metrics.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list metrics for %s: %w", patientID, err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	return items, nil
}

// AddMetric records a new panel for patientID, dated now when m.Date is zero.
func (s *Service) AddMetric(ctx context.Context, patientID string, m *HealthMetric) (*HealthMetric, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidID
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.ID = ""
	m.PatientID = patientID
	if m.Date.IsZero() {
		m.Date = s.now().UTC()
	}
	created, err := s.metrics.Create(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("create metric: %w", err)
	}
	s.logger.Info().Str("patient_id", patientID).Str("metric_id", created.ID).Msg("health metric added")
	return created, nil
}

// UpdateMetric replaces the readings of an existing panel.
func (s *Service) UpdateMetric(ctx context.Context, m *HealthMetric) (*HealthMetric, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidMetric)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.metrics.Update(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("update metric %s: %w", m.ID, err)
	}
	return updated, nil
}

func (s *Service) DeleteMetric(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMetric)
	}
	if err := s.metrics.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete metric %s: %w", id, err)
	}
	s.logger.Info().Str("metric_id", id).Msg("health metric deleted")
	return nil
}
