package notification

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ContactResolver finds the phone number SMS for a patient should go to.
type ContactResolver interface {
	ContactNumber(ctx context.Context, patientID string) (string, error)
}

// ContactResolverFunc adapts a function to ContactResolver.
type ContactResolverFunc func(ctx context.Context, patientID string) (string, error)

func (f ContactResolverFunc) ContactNumber(ctx context.Context, patientID string) (string, error) {
	return f(ctx, patientID)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func WithTemplates(t *TemplateEngine) Option {
	return func(d *Dispatcher) { d.templates = t }
}

// WithDelivery hands every new record to sender, addressed through contacts.
func WithDelivery(sender SMSSender, contacts ContactResolver) Option {
	return func(d *Dispatcher) {
		d.sender = sender
		d.contacts = contacts
	}
}

// Dispatcher creates and lists SMS notification records.
type Dispatcher struct {
	repo      Repository
	templates *TemplateEngine
	sender    SMSSender
	contacts  ContactResolver
	logger    zerolog.Logger
}

func NewDispatcher(repo Repository, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		repo:      repo,
		templates: NewTemplateEngine(),
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DeliveryEnabled reports whether an SMS gateway is configured.
func (d *Dispatcher) DeliveryEnabled() bool {
	return d.sender != nil
}

// CreateNotification stores a record for a bill. When delivery is configured
// the message is also sent; a delivery failure is logged and does not fail
// the call because the record already exists.
func (d *Dispatcher) CreateNotification(ctx context.Context, patientID, billID, message string) (*Record, error) {
	rec := &Record{
		PatientID: strings.TrimSpace(patientID),
		BillID:    strings.TrimSpace(billID),
		Message:   strings.TrimSpace(message),
	}
	switch {
	case rec.PatientID == "":
		return nil, fmt.Errorf("%w: patientId", ErrMissingField)
	case rec.BillID == "":
		return nil, fmt.Errorf("%w: billId", ErrMissingField)
	case rec.Message == "":
		return nil, fmt.Errorf("%w: message", ErrMissingField)
	}

	created, err := d.repo.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create notification for bill %s: %w", rec.BillID, err)
	}
	d.logger.Info().
		Str("patient_id", created.PatientID).
		Str("bill_id", created.BillID).
		Str("notification_id", created.ID).
		Msg("sms notification recorded")

	d.deliver(ctx, created)
	return created, nil
}

func (d *Dispatcher) deliver(ctx context.Context, rec *Record) {
	if d.sender == nil || d.contacts == nil {
		return
	}
	to, err := d.contacts.ContactNumber(ctx, rec.PatientID)
	if err != nil || strings.TrimSpace(to) == "" {
		d.logger.Warn().Err(err).Str("patient_id", rec.PatientID).Msg("no contact number, sms not delivered")
		return
	}
	if err := d.sender.SendSMS(ctx, to, rec.Message); err != nil {
		d.logger.Error().Err(err).
			Str("patient_id", rec.PatientID).
			Str("notification_id", rec.ID).
			Msg("sms delivery failed")
	}
}

// NotifyBillCreated records the standard message for a newly created bill.
func (d *Dispatcher) NotifyBillCreated(ctx context.Context, patientID, billID string, finalAmount float64) error {
	msg, err := d.templates.Render(TemplateBillCreated, map[string]string{
		"bill_id":      billID,
		"final_amount": strconv.FormatFloat(finalAmount, 'f', -1, 64),
	})
	if err != nil {
		return err
	}
	_, err = d.CreateNotification(ctx, patientID, billID, msg)
	return err
}

// ListNotifications returns a patient's records, newest first. No records is
// a valid, empty result.
func (d *Dispatcher) ListNotifications(ctx context.Context, patientID string) ([]*Record, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, fmt.Errorf("%w: patientId", ErrMissingField)
	}
	items, err := d.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", patientID, err)
	}
	if items == nil {
		items = []*Record{}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Deliver sends an ad-hoc message through the configured gateway.
func (d *Dispatcher) Deliver(ctx context.Context, to, body string) error {
	if d.sender == nil {
		return ErrDeliveryDisabled
	}
	if strings.TrimSpace(to) == "" || strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: phone and message", ErrMissingField)
	}
	if err := d.sender.SendSMS(ctx, to, body); err != nil {
		return err
	}
	d.logger.Info().Str("to", to).Msg("sms sent")
	return nil
}
