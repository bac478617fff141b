package billing

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// SubBill is one day's charges. Sub-bills are append-only.
type SubBill struct {
	ID          string    `json:"_id"`
	DailyAmount float64   `json:"dailyAmount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts both "_id" and "id".
func (s *SubBill) UnmarshalJSON(data []byte) error {
	type alias SubBill
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = aux.AltID
	}
	return nil
}

// Bill is a patient's running bill. Once IsCheckedOut is set the bill is
// immutable.
type Bill struct {
	ID                string    `json:"_id"`
	PatientID         string    `json:"patientId"`
	SubBills          []SubBill `json:"subBills"`
	FinalAmount       float64   `json:"finalAmount"`
	InsuranceCoverage float64   `json:"insuranceCoverage"`
	IsCheckedOut      bool      `json:"isCheckedOut"`
	CreatedAt         time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts both "_id" and "id".
func (b *Bill) UnmarshalJSON(data []byte) error {
	type alias Bill
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = aux.AltID
	}
	return nil
}

func (b *Bill) clone() *Bill {
	if b == nil {
		return nil
	}
	cp := *b
	cp.SubBills = append([]SubBill(nil), b.SubBills...)
	return &cp
}

// CatalogEntry is a priced hospital service or treatment.
type CatalogEntry struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// UnmarshalJSON accepts both "id" and "_id".
func (e *CatalogEntry) UnmarshalJSON(data []byte) error {
	type alias CatalogEntry
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = aux.MongoID
	}
	return nil
}

// Selection is the set of catalog names chosen for a new sub-bill.
type Selection struct {
	HospitalServices []string `json:"hospitalServices"`
	Treatments       []string `json:"treatments"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.HospitalServices) == 0 && len(s.Treatments) == 0
}

// SubBillRequest is the body of a bill creation call.
type SubBillRequest struct {
	PatientID        string   `json:"patientId"`
	DailyAmount      float64  `json:"dailyAmount"`
	HospitalServices []string `json:"hospitalServices"`
	Treatments       []string `json:"treatments"`
}

// CheckoutRequest is the body of a checkout call.
type CheckoutRequest struct {
	InsuranceCoverage float64 `json:"insuranceCoverage"`
	AmountDue         float64 `json:"amountDue"`
}

// RoundAmount rounds v to cents.
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

// AmountDue is max(0, finalAmount - coverage), rounded to cents. It is the
// only place the amount due is computed.
func AmountDue(finalAmount, coverage float64) float64 {
	return RoundAmount(math.Max(0, finalAmount-coverage))
}

// FormatAmount renders an amount without trailing zeros: 1000, 70.5.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(RoundAmount(v), 'f', -1, 64)
}
