package patient

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidID     = errors.New("patient id is required")
	ErrInvalidMetric = errors.New("invalid health metric")
)

// Patient is a read-only patient record. It is re-fetched on every lookup.
type Patient struct {
	ID            string `json:"id"`
	FullName      string `json:"fullName"`
	NIC           string `json:"NIC,omitempty"`
	Address       string `json:"address,omitempty"`
	DateOfBirth   string `json:"dateOfBirth,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`
	Email         string `json:"email,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Age           int    `json:"age,omitempty"`
	BloodType     string `json:"bloodType,omitempty"`
}

// UnmarshalJSON accepts the backend's field spellings: "_id" or "id", "DOB",
// "name", "phone" and "bloodtype".
func (p *Patient) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID            string      `json:"id"`
		MongoID       string      `json:"_id"`
		FullName      string      `json:"fullName"`
		Name          string      `json:"name"`
		NIC           string      `json:"NIC"`
		Address       string      `json:"address"`
		DateOfBirth   string      `json:"dateOfBirth"`
		DOB           string      `json:"DOB"`
		ContactNumber string      `json:"contactNumber"`
		Phone         string      `json:"phone"`
		Email         string      `json:"email"`
		Gender        string      `json:"gender"`
		Age           json.Number `json:"age"`
		BloodType     string      `json:"bloodType"`
		BloodTypeAlt  string      `json:"bloodtype"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Patient{
		ID:            firstNonEmpty(aux.MongoID, aux.ID),
		FullName:      firstNonEmpty(aux.FullName, aux.Name),
		NIC:           aux.NIC,
		Address:       aux.Address,
		DateOfBirth:   firstNonEmpty(aux.DateOfBirth, aux.DOB),
		ContactNumber: firstNonEmpty(aux.ContactNumber, aux.Phone),
		Email:         aux.Email,
		Gender:        aux.Gender,
		BloodType:     firstNonEmpty(aux.BloodType, aux.BloodTypeAlt),
	}
	if aux.Age != "" {
		if age, err := aux.Age.Float64(); err == nil {
			p.Age = int(age)
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// HealthMetric is one laboratory panel recorded for a patient.
type HealthMetric struct {
	ID                  string    `json:"_id,omitempty"`
	PatientID           string    `json:"patientID"`
	Date                time.Time `json:"date"`
	HbA1c               float64   `json:"hbA1c"`
	FastingGlucose      float64   `json:"fastingGlucose"`
	TotalCholesterol    float64   `json:"totalCholesterol"`
	HDLC                float64   `json:"hdlC"`
	LDLC                float64   `json:"ldlC"`
	Triglycerides       float64   `json:"triglycerides"`
	TGLDLRatio          float64   `json:"tgLdlRatio"`
	EGFR                float64   `json:"eGFR"`
	UAlbCreatinineRatio float64   `json:"uAlbCreatinineRatio"`
}

// UnmarshalJSON accepts both "_id" and "id".
func (m *HealthMetric) UnmarshalJSON(data []byte) error {
	type alias HealthMetric
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = aux.AltID
	}
	return nil
}

// Validate rejects negative readings.
func (m *HealthMetric) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"hbA1c", m.HbA1c},
		{"fastingGlucose", m.FastingGlucose},
		{"totalCholesterol", m.TotalCholesterol},
		{"hdlC", m.HDLC},
		{"ldlC", m.LDLC},
		{"triglycerides", m.Triglycerides},
		{"tgLdlRatio", m.TGLDLRatio},
		{"eGFR", m.EGFR},
		{"uAlbCreatinineRatio", m.UAlbCreatinineRatio},
	}
	for _, f := range fields {
		if f.v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidMetric, f.name)
		}
	}
	return nil
}
