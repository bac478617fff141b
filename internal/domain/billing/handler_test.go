package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

var errTest = errors.New("sms backend down")

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.mgr, f.mgr.catalog), f, echo.New()
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) View {
	t.Helper()
	var v View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestHandler_LookupAndDesk(t *testing.T) {
	h, f, e := newTestHandler()
	f.repo.bills["p-1"] = &Bill{ID: "b-1", PatientID: "p-1", FinalAmount: 1000, InsuranceCoverage: 300}

	rec := httptest.NewRecorder()
	if err := h.Lookup(e.NewContext(jsonRequest(http.MethodPost, "/", `{"patientId":"p-1"}`), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := decodeView(t, rec); v.AmountDue != 700 || v.State != StateBillLoaded {
		t.Errorf("unexpected view %+v", v)
	}

	rec = httptest.NewRecorder()
	if err := h.GetDesk(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := decodeView(t, rec); v.PatientID != "p-1" {
		t.Errorf("expected desk to show p-1, got %+v", v)
	}
}

func TestHandler_Lookup_EmptyID(t *testing.T) {
	h, _, e := newTestHandler()
	err := h.Lookup(e.NewContext(jsonRequest(http.MethodPost, "/", `{"patientId":""}`), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusBadRequest)
}

func TestHandler_CheckoutFlow(t *testing.T) {
	h, f, e := newTestHandler()
	f.repo.bills["p-1"] = &Bill{ID: "b-1", PatientID: "p-1", FinalAmount: 1000, InsuranceCoverage: 300}
	_ = h.Lookup(e.NewContext(jsonRequest(http.MethodPost, "/", `{"patientId":"p-1"}`), httptest.NewRecorder()))

	if err := h.BeginCheckout(e.NewContext(jsonRequest(http.MethodPost, "/", ""), httptest.NewRecorder())); err != nil {
		t.Fatalf("begin: %v", err)
	}

	err := h.InputCoverage(e.NewContext(jsonRequest(http.MethodPost, "/", `{"value":"5-"}`), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusBadRequest)

	if err := h.InputCoverage(e.NewContext(jsonRequest(http.MethodPost, "/", `{"value":"500"}`), httptest.NewRecorder())); err != nil {
		t.Fatalf("coverage: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := h.SubmitCheckout(e.NewContext(jsonRequest(http.MethodPost, "/", ""), rec)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if v := decodeView(t, rec); !v.CheckedOut || v.AmountDue != 500 {
		t.Errorf("unexpected view %+v", v)
	}

	err = h.BeginCheckout(e.NewContext(jsonRequest(http.MethodPost, "/", ""), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusConflict)
}

func TestHandler_CreateBill(t *testing.T) {
	h, f, e := newTestHandler()
	_ = h.Lookup(e.NewContext(jsonRequest(http.MethodPost, "/", `{"patientId":"p-1"}`), httptest.NewRecorder()))

	rec := httptest.NewRecorder()
	body := `{"hospitalServices":["X-Ray"],"treatments":["Dressing"]}`
	if err := h.CreateBill(e.NewContext(jsonRequest(http.MethodPost, "/", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp createResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Bill == nil || resp.Bill.FinalAmount != 70 || len(f.notifier.calls) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_CreateBill_EmptySelection(t *testing.T) {
	h, _, e := newTestHandler()
	_ = h.Lookup(e.NewContext(jsonRequest(http.MethodPost, "/", `{"patientId":"p-1"}`), httptest.NewRecorder()))

	err := h.CreateBill(e.NewContext(jsonRequest(http.MethodPost, "/", `{"hospitalServices":[],"treatments":[]}`), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusBadRequest)
}

func TestHandler_CreateBill_NotificationFailure(t *testing.T) {
	h, f, e := newTestHandler()
	f.notifier.err = errTest
	_ = h.Lookup(e.NewContext(jsonRequest(http.MethodPost, "/", `{"patientId":"p-1"}`), httptest.NewRecorder()))

	rec := httptest.NewRecorder()
	if err := h.CreateBill(e.NewContext(jsonRequest(http.MethodPost, "/", `{"treatments":["Dressing"]}`), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	var resp createResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Bill == nil || resp.Error == "" {
		t.Errorf("expected bill and error in response, got %+v", resp)
	}
}

func TestHandler_GetCatalog(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/billing/catalog?service=X-Ray&treatment=Dressing", nil)
	if err := h.GetCatalog(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp catalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CandidateTotal != 70 || len(resp.HospitalServices) != 2 || len(resp.Treatments) != 1 {
		t.Errorf("unexpected catalog response %+v", resp)
	}
}
