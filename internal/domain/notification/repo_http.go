package notification

import (
	"context"
	"encoding/json"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

const smsPath = "/api/bills/sms"

type httpRepo struct {
	api      *apiclient.Client
	sendAuth bool
}

// NewHTTPRepo returns a Repository backed by the billing SMS endpoints.
// sendAuth attaches the bearer token, as for the other billing calls.
func NewHTTPRepo(api *apiclient.Client, sendAuth bool) Repository {
	return &httpRepo{api: api, sendAuth: sendAuth}
}

func (r *httpRepo) Create(ctx context.Context, rec *Record) (*Record, error) {
	body := createRequest{PatientID: rec.PatientID, BillID: rec.BillID, Message: rec.Message}
	var raw json.RawMessage
	err := r.api.Post(ctx, smsPath, body, &raw,
		apiclient.AuthenticatedIf(r.sendAuth), apiclient.IgnoreUndecodable())
	if err != nil {
		return nil, err
	}
	// A 2xx means the record is stored. The body may be the record, an
	// envelope around it, or any acknowledgement; only one carrying an id is
	// taken as the record.
	out := *rec
	if len(raw) == 0 {
		return &out, nil
	}
	var stored Record
	if err := apiclient.Unwrap(raw, &stored); err != nil {
		return &out, nil
	}
	if stored.ID != "" {
		out.ID = stored.ID
		if !stored.CreatedAt.IsZero() {
			out.CreatedAt = stored.CreatedAt
		}
	}
	return &out, nil
}

func (r *httpRepo) ListByPatient(ctx context.Context, patientID string) ([]*Record, error) {
	var env apiclient.Envelope
	if err := r.api.Get(ctx, apiclient.Path(smsPath, patientID), &env, apiclient.AuthenticatedIf(r.sendAuth)); err != nil {
		return nil, err
	}
	var items []*Record
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}
