// Package notification records the SMS messages tied to patient bills and
// optionally hands them to an SMS gateway for delivery.
package notification

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrMissingField     = errors.New("required field missing")
	ErrDeliveryDisabled = errors.New("sms delivery is not configured")
	ErrDeliveryFailed   = errors.New("sms delivery failed")
)

// Record is a persisted SMS notification. Records are append-only.
type Record struct {
	ID        string    `json:"_id,omitempty"`
	PatientID string    `json:"patientId"`
	BillID    string    `json:"billId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts both "_id" and "id".
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = aux.AltID
	}
	return nil
}

// createRequest is the wire body for a new record; the backend assigns the id
// and timestamp.
type createRequest struct {
	PatientID string `json:"patientId"`
	BillID    string `json:"billId"`
	Message   string `json:"message"`
}
