package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *mockRepo, *mockMetricRepo, *echo.Echo) {
	svc, repo, metrics := newTestService()
	return NewHandler(svc), repo, metrics, echo.New()
}

func TestHandler_GetPatient(t *testing.T) {
	h, repo, metrics, e := newTestHandler()
	repo.patients["p-1"] = &Patient{ID: "p-1", FullName: "Jane Doe"}
	metrics.items["m-1"] = &HealthMetric{ID: "m-1", PatientID: "p-1"}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("p-1")

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page patientPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Patient.FullName != "Jane Doe" || len(page.Metrics) != 1 {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestHandler_GetPatient_MetricsDegrade(t *testing.T) {
	h, repo, metrics, e := newTestHandler()
	repo.patients["p-1"] = &Patient{ID: "p-1", FullName: "Jane Doe"}
	metrics.err = errors.New("boom")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("p-1")

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("expected page to render without metrics, got %v", err)
	}
	var page patientPage
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if page.MetricsError == "" || len(page.Metrics) != 0 {
		t.Errorf("expected degraded metrics panel, got %+v", page)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, _, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.GetPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_AddMetric(t *testing.T) {
	h, _, metrics, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"hbA1c":6.4,"ldlC":120}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p-1")

	if err := h.AddMetric(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if len(metrics.items) != 1 {
		t.Errorf("expected metric to be stored")
	}
}

func TestHandler_AddMetric_Negative(t *testing.T) {
	h, _, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"hbA1c":-2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("p-1")

	err := h.AddMetric(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_DeleteMetric(t *testing.T) {
	h, _, metrics, e := newTestHandler()
	metrics.items["m-1"] = &HealthMetric{ID: "m-1", PatientID: "p-1"}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id", "metricId")
	c.SetParamValues("p-1", "m-1")

	if err := h.DeleteMetric(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
