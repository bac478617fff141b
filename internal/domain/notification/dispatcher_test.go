package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

type mockRepo struct {
	mu      sync.Mutex
	records []*Record
	err     error
	now     time.Time
}

func (m *mockRepo) Create(_ context.Context, r *Record) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cp := *r
	cp.ID = uuid.New().String()
	cp.CreatedAt = m.now
	m.records = append(m.records, &cp)
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID string) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*Record
	for _, r := range m.records {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func contacts(numbers map[string]string) ContactResolver {
	return ContactResolverFunc(func(_ context.Context, patientID string) (string, error) {
		n, ok := numbers[patientID]
		if !ok {
			return "", apiclient.ErrNotFound
		}
		return n, nil
	})
}

func TestDispatcher_CreateNotification(t *testing.T) {
	repo := &mockRepo{now: time.Now()}
	d := NewDispatcher(repo)

	rec, err := d.CreateNotification(context.Background(), "p-1", "b-1", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID == "" || rec.PatientID != "p-1" || rec.BillID != "b-1" || rec.Message != "hello" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestDispatcher_CreateNotification_RequiresFields(t *testing.T) {
	tests := []struct {
		name                       string
		patientID, billID, message string
	}{
		{"no patient", "", "b-1", "hi"},
		{"no bill", "p-1", "", "hi"},
		{"no message", "p-1", "b-1", "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			d := NewDispatcher(repo)
			_, err := d.CreateNotification(context.Background(), tt.patientID, tt.billID, tt.message)
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("expected ErrMissingField, got %v", err)
			}
			if len(repo.records) != 0 {
				t.Error("expected nothing sent to the backend")
			}
		})
	}
}

func TestDispatcher_NotifyBillCreated(t *testing.T) {
	repo := &mockRepo{}
	d := NewDispatcher(repo)

	if err := d.NotifyBillCreated(context.Background(), "p-1", "b-9", 1070.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(repo.records))
	}
	want := "Dear Patient, your bill (ID: b-9) has been generated with a total amount of Rs.1070.5."
	if got := repo.records[0].Message; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestDispatcher_NotifyBillCreated_BackendFailure(t *testing.T) {
	d := NewDispatcher(&mockRepo{err: apiclient.ErrNetwork})
	if err := d.NotifyBillCreated(context.Background(), "p-1", "b-9", 10); !errors.Is(err, apiclient.ErrNetwork) {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestDispatcher_DeliversWhenConfigured(t *testing.T) {
	sender := &MockSMSSender{}
	d := NewDispatcher(&mockRepo{}, WithDelivery(sender, contacts(map[string]string{"p-1": "+94771234567"})))

	if _, err := d.CreateNotification(context.Background(), "p-1", "b-1", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := sender.Calls()
	if len(calls) != 1 || calls[0].To != "+94771234567" || calls[0].Body != "hello" {
		t.Errorf("unexpected sms calls %+v", calls)
	}
}

func TestDispatcher_DeliveryFailureIsNotReturned(t *testing.T) {
	sender := &MockSMSSender{ShouldFail: true, FailError: "gateway down"}
	repo := &mockRepo{}
	d := NewDispatcher(repo, WithDelivery(sender, contacts(map[string]string{"p-1": "+94771234567"})))

	if _, err := d.CreateNotification(context.Background(), "p-1", "b-1", "hello"); err != nil {
		t.Fatalf("expected record creation to succeed, got %v", err)
	}
	if len(repo.records) != 1 || len(sender.Calls()) != 1 {
		t.Error("expected the record to exist and delivery to be attempted")
	}

	// Unknown contact: record still created, nothing sent.
	if _, err := d.CreateNotification(context.Background(), "p-2", "b-2", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.Calls()) != 1 {
		t.Error("expected no delivery without a contact number")
	}
}

func TestDispatcher_ListNotifications_NewestFirst(t *testing.T) {
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	repo := &mockRepo{records: []*Record{
		{ID: "old", PatientID: "p-1", CreatedAt: base},
		{ID: "new", PatientID: "p-1", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "mid", PatientID: "p-1", CreatedAt: base.Add(time.Hour)},
		{ID: "other", PatientID: "p-2", CreatedAt: base},
	}}
	d := NewDispatcher(repo)

	items, err := d.ListNotifications(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 || items[0].ID != "new" || items[1].ID != "mid" || items[2].ID != "old" {
		t.Errorf("unexpected order %v", ids(items))
	}
}

func TestDispatcher_ListNotifications_Empty(t *testing.T) {
	d := NewDispatcher(&mockRepo{})
	items, err := d.ListNotifications(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil list, got %v", items)
	}
}

func TestDispatcher_Deliver(t *testing.T) {
	if err := NewDispatcher(&mockRepo{}).Deliver(context.Background(), "+1", "hi"); !errors.Is(err, ErrDeliveryDisabled) {
		t.Errorf("expected ErrDeliveryDisabled, got %v", err)
	}

	sender := &MockSMSSender{}
	d := NewDispatcher(&mockRepo{}, WithDelivery(sender, nil))
	if err := d.Deliver(context.Background(), "", "hi"); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
	if err := d.Deliver(context.Background(), "+94770000000", "Your results are ready"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(sender.Calls()) != 1 {
		t.Errorf("expected 1 sms, got %d", len(sender.Calls()))
	}
}

func ids(items []*Record) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.ID)
	}
	return out
}
