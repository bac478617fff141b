package billing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinitech/frontoffice/internal/domain/patient"
	"github.com/clinitech/frontoffice/internal/platform/generation"
)

// State is a step of the billing desk workflow for one patient.
type State string

const (
	StateNoPatient       State = "no_patient"
	StateBillLoading     State = "bill_loading"
	StateBillLoaded      State = "bill_loaded"
	StateCheckoutEditing State = "checkout_editing"
	StateCheckoutSaving  State = "checkout_saving"
)

var (
	ErrNoPatient          = errors.New("no patient selected")
	ErrIllegalTransition  = errors.New("action not allowed in the current billing state")
	ErrAlreadyCheckedOut  = errors.New("bill is already checked out")
	ErrInvalidCoverage    = errors.New("insurance coverage must be a non-negative amount")
	ErrEmptySelection     = errors.New("select at least one hospital service or treatment")
	ErrNotificationFailed = errors.New("bill created but the SMS record could not be saved")
)

var coveragePattern = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)

// billKey tags every request that publishes into the manager's bill state.
const billKey = "bill"

// PatientFinder resolves the patient typed at the billing desk.
type PatientFinder interface {
	Lookup(ctx context.Context, id string) (*patient.Patient, error)
}

// Notifier records the SMS that follows a bill creation.
type Notifier interface {
	NotifyBillCreated(ctx context.Context, patientID, billID string, finalAmount float64) error
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithPatientFinder makes Load resolve the patient record before fetching
// the bill. Without one, Load trusts the id it is given.
func WithPatientFinder(f PatientFinder) Option {
	return func(m *Manager) { m.patients = f }
}

// Manager owns the billing desk state: the selected patient, their bill and
// the checkout form. All methods are safe for concurrent use; the lock is
// never held across a backend call.
type Manager struct {
	repo     Repository
	catalog  *Catalog
	notifier Notifier
	patients PatientFinder
	gen      *generation.Tracker
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	patientID string
	patient   *patient.Patient
	bill      *Bill
	draft     string
	creating  bool
	lastErr   string
}

func NewManager(repo Repository, catalog *Catalog, notifier Notifier, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		catalog:  catalog,
		notifier: notifier,
		gen:      generation.NewTracker(),
		logger:   zerolog.Nop(),
		state:    StateNoPatient,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CurrentPatient returns the id of the patient on the desk, or "".
func (m *Manager) CurrentPatient() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patientID
}

// Load selects a patient and fetches their bill. A missing bill is not an
// error: the desk shows "no bill yet" with a zero total. A newer Load or a
// Reset makes this one return generation.ErrStaleResponse without touching
// state.
func (m *Manager) Load(ctx context.Context, patientID string) (View, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return m.Snapshot(), ErrNoPatient
	}
	tk := m.gen.Begin(billKey)

	var p *patient.Patient
	if m.patients != nil {
		found, err := m.patients.Lookup(ctx, patientID)
		m.mu.Lock()
		if !m.gen.Current(tk) {
			m.mu.Unlock()
			return m.Snapshot(), generation.ErrStaleResponse
		}
		if err != nil {
			m.clearLocked()
			m.lastErr = err.Error()
			m.mu.Unlock()
			return m.Snapshot(), err
		}
		m.mu.Unlock()
		p = found
	}

	m.mu.Lock()
	if !m.gen.Current(tk) {
		m.mu.Unlock()
		return m.Snapshot(), generation.ErrStaleResponse
	}
	m.clearLocked()
	m.state = StateBillLoading
	m.patientID = patientID
	m.patient = p
	m.mu.Unlock()

	b, err := m.repo.GetByPatient(ctx, patientID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.gen.Current(tk) {
		return m.viewLocked(), generation.ErrStaleResponse
	}
	if err != nil {
		m.logger.Info().Err(err).Str("patient_id", patientID).Msg("no bill available, starting empty")
		b = nil
	}
	m.bill = b
	m.state = StateBillLoaded
	return m.viewLocked(), nil
}

// BeginCheckout opens the coverage form for the loaded bill.
func (m *Manager) BeginCheckout() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateBillLoaded || m.bill == nil || m.creating {
		return m.viewLocked(), ErrIllegalTransition
	}
	if m.bill.IsCheckedOut {
		return m.viewLocked(), ErrAlreadyCheckedOut
	}
	m.state = StateCheckoutEditing
	m.draft = ""
	if m.bill.InsuranceCoverage > 0 {
		m.draft = FormatAmount(m.bill.InsuranceCoverage)
	}
	m.lastErr = ""
	return m.viewLocked(), nil
}

// InputCoverage replaces the coverage draft. Values other than an unsigned
// decimal with at most one point are refused and the draft is left as is.
func (m *Manager) InputCoverage(value string) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateCheckoutEditing {
		return m.viewLocked(), ErrIllegalTransition
	}
	if !coveragePattern.MatchString(value) {
		return m.viewLocked(), ErrInvalidCoverage
	}
	m.draft = value
	return m.viewLocked(), nil
}

// CancelCheckout closes the coverage form without saving.
func (m *Manager) CancelCheckout() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateCheckoutEditing {
		return m.viewLocked(), ErrIllegalTransition
	}
	m.state = StateBillLoaded
	m.draft = ""
	return m.viewLocked(), nil
}

// SubmitCheckout sends the coverage and the derived amount due. On success the
// bill returned by the backend replaces the local one; on failure the form
// stays open with the draft intact.
func (m *Manager) SubmitCheckout(ctx context.Context) (View, error) {
	m.mu.Lock()
	if m.state != StateCheckoutEditing {
		defer m.mu.Unlock()
		return m.viewLocked(), ErrIllegalTransition
	}
	coverage, err := parseCoverage(m.draft)
	if err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	patientID := m.patientID
	req := CheckoutRequest{
		InsuranceCoverage: coverage,
		AmountDue:         AmountDue(m.bill.FinalAmount, coverage),
	}
	m.state = StateCheckoutSaving
	m.lastErr = ""
	tk := m.gen.Begin(billKey)
	m.mu.Unlock()

	b, err := m.repo.Checkout(ctx, patientID, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.gen.Current(tk) {
		return m.viewLocked(), generation.ErrStaleResponse
	}
	if err != nil {
		m.state = StateCheckoutEditing
		m.lastErr = err.Error()
		m.logger.Warn().Err(err).Str("patient_id", patientID).Msg("checkout failed")
		return m.viewLocked(), fmt.Errorf("checkout bill for %s: %w", patientID, err)
	}
	m.bill = b
	m.state = StateBillLoaded
	m.draft = ""
	m.logger.Info().
		Str("patient_id", patientID).
		Str("bill_id", b.ID).
		Float64("insurance_coverage", b.InsuranceCoverage).
		Msg("bill checked out")
	return m.viewLocked(), nil
}

// CreateBill prices the selection against the catalog, appends a sub-bill and
// records the SMS notification. The two backend writes are not atomic: when
// the notification fails the created bill is still returned, together with
// ErrNotificationFailed.
func (m *Manager) CreateBill(ctx context.Context, sel Selection) (*Bill, error) {
	if sel.Empty() {
		return nil, ErrEmptySelection
	}

	m.mu.Lock()
	switch {
	case m.patientID == "":
		m.mu.Unlock()
		return nil, ErrNoPatient
	case m.state != StateBillLoaded || m.creating:
		m.mu.Unlock()
		return nil, ErrIllegalTransition
	case m.bill != nil && m.bill.IsCheckedOut:
		m.mu.Unlock()
		return nil, ErrAlreadyCheckedOut
	}
	patientID := m.patientID
	m.creating = true
	m.lastErr = ""
	tk := m.gen.Begin(billKey)
	m.mu.Unlock()

	b, err := m.createAndNotify(ctx, patientID, sel)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.creating = false
	if b == nil {
		if m.gen.Current(tk) {
			m.lastErr = err.Error()
		}
		return nil, err
	}
	if !m.gen.Current(tk) {
		if err != nil {
			return b, fmt.Errorf("%w: %w", generation.ErrStaleResponse, err)
		}
		return b, generation.ErrStaleResponse
	}
	m.bill = b
	if err != nil {
		m.lastErr = err.Error()
	}
	return b.clone(), err
}

func (m *Manager) createAndNotify(ctx context.Context, patientID string, sel Selection) (*Bill, error) {
	total, err := m.catalog.CandidateTotal(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("price selection: %w", err)
	}
	b, err := m.repo.AddSubBill(ctx, SubBillRequest{
		PatientID:        patientID,
		DailyAmount:      total,
		HospitalServices: sel.HospitalServices,
		Treatments:       sel.Treatments,
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("patient_id", patientID).Msg("bill creation failed")
		return nil, fmt.Errorf("create bill for %s: %w", patientID, err)
	}
	m.logger.Info().
		Str("patient_id", patientID).
		Str("bill_id", b.ID).
		Float64("daily_amount", total).
		Float64("final_amount", b.FinalAmount).
		Msg("sub-bill created")

	if m.notifier == nil {
		return b, nil
	}
	if err := m.notifier.NotifyBillCreated(ctx, patientID, b.ID, b.FinalAmount); err != nil {
		m.logger.Error().Err(err).
			Str("patient_id", patientID).
			Str("bill_id", b.ID).
			Msg("orphaned bill: notification record not created")
		return b, fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	return b, nil
}

// Reset clears the desk. Responses still in flight are discarded.
func (m *Manager) Reset() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen.Invalidate(billKey)
	m.clearLocked()
	m.creating = false
	return m.viewLocked()
}

func (m *Manager) clearLocked() {
	m.state = StateNoPatient
	m.patientID = ""
	m.patient = nil
	m.bill = nil
	m.draft = ""
	m.lastErr = ""
}

// View is a point-in-time copy of the billing desk.
type View struct {
	State     State            `json:"state"`
	PatientID string           `json:"patientId,omitempty"`
	Patient   *patient.Patient `json:"patient,omitempty"`
	Bill      *Bill            `json:"bill,omitempty"`
	HasBill   bool             `json:"hasBill"`
	// FinalAmount is zero while no bill exists.
	FinalAmount       float64 `json:"finalAmount"`
	InsuranceCoverage float64 `json:"insuranceCoverage"`
	AmountDue         float64 `json:"amountDue"`
	CheckedOut        bool    `json:"checkedOut"`
	CoverageDraft     string  `json:"coverageDraft,omitempty"`
	// DraftAmountDue previews the amount due for the coverage being typed.
	DraftAmountDue  *float64 `json:"draftAmountDue,omitempty"`
	CanEditCoverage bool     `json:"canEditCoverage"`
	CanCreateBill   bool     `json:"canCreateBill"`
	IsSubmitting    bool     `json:"isSubmitting"`
	LastError       string   `json:"lastError,omitempty"`
}

// Snapshot returns the current view. Amounts due are derived on every call.
func (m *Manager) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *Manager) viewLocked() View {
	v := View{
		State:         m.state,
		PatientID:     m.patientID,
		Bill:          m.bill.clone(),
		HasBill:       m.bill != nil,
		IsSubmitting:  m.state == StateCheckoutSaving || m.creating,
		CoverageDraft: m.draft,
		LastError:     m.lastErr,
	}
	if m.patient != nil {
		p := *m.patient
		v.Patient = &p
	}
	if m.bill != nil {
		v.FinalAmount = m.bill.FinalAmount
		v.InsuranceCoverage = m.bill.InsuranceCoverage
		v.AmountDue = AmountDue(m.bill.FinalAmount, m.bill.InsuranceCoverage)
		v.CheckedOut = m.bill.IsCheckedOut
	}
	idle := m.state == StateBillLoaded && !m.creating
	v.CanEditCoverage = idle && m.bill != nil && !v.CheckedOut
	v.CanCreateBill = idle && m.patientID != "" && !v.CheckedOut
	if m.state == StateCheckoutEditing {
		if coverage, err := parseCoverage(m.draft); err == nil {
			due := AmountDue(v.FinalAmount, coverage)
			v.DraftAmountDue = &due
		}
	}
	return v
}

func parseCoverage(draft string) (float64, error) {
	if draft == "" || draft == "." || !coveragePattern.MatchString(draft) {
		return 0, ErrInvalidCoverage
	}
	v, err := strconv.ParseFloat(draft, 64)
	if err != nil || v < 0 {
		return 0, ErrInvalidCoverage
	}
	return RoundAmount(v), nil
}
