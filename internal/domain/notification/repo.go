package notification

import "context"

type Repository interface {
	Create(ctx context.Context, r *Record) (*Record, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Record, error)
}
