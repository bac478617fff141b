package apiclient

import (
	"encoding/json"
	"fmt"
)

// Envelope is the backend's standard {success, data} wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// Decode unmarshals Data into v. An envelope with success=false yields
// ErrUnsuccessful, wrapped with the backend message when present. A null or
// missing data field leaves v untouched.
func (e *Envelope) Decode(v interface{}) error {
	if !e.Success {
		if e.Message != "" {
			return fmt.Errorf("%w: %s", ErrUnsuccessful, e.Message)
		}
		return ErrUnsuccessful
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrNetwork, err)
	}
	return nil
}

// DataOnly is for endpoints that wrap the payload in {data} without a
// success flag.
type DataOnly struct {
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals Data into v.
func (d *DataOnly) Decode(v interface{}) error {
	if len(d.Data) == 0 || string(d.Data) == "null" {
		return ErrNotFound
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrNetwork, err)
	}
	return nil
}

// Unwrap decodes raw into v, descending into a top-level "data" field when raw
// is an object that has one. Some endpoints return bare payloads, others the
// {data} wrapper.
func Unwrap(raw json.RawMessage, v interface{}) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil {
		if data, ok := probe["data"]; ok {
			raw = data
		}
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode payload: %v", ErrNetwork, err)
	}
	return nil
}
