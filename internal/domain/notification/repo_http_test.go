package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

func newFakeSMSBackend(t *testing.T, createReply func(c echo.Context, in createRequest) error) *apiclient.Client {
	t.Helper()
	e := echo.New()
	e.POST("/api/bills/sms", func(c echo.Context) error {
		var in createRequest
		if err := c.Bind(&in); err != nil {
			return err
		}
		return createReply(c, in)
	})
	e.GET("/api/bills/sms/:patientId", func(c echo.Context) error {
		if c.Param("patientId") == "none" {
			return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": []interface{}{}})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data": []map[string]interface{}{
				{"_id": "n-1", "patientId": c.Param("patientId"), "billId": "b-1", "message": "m1", "createdAt": "2026-05-01T08:00:00Z"},
				{"id": "n-2", "patientId": c.Param("patientId"), "billId": "b-2", "message": "m2", "createdAt": "2026-05-02T08:00:00Z"},
			},
		})
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL)
}

func TestHTTPRepo_Create(t *testing.T) {
	tests := []struct {
		name   string
		reply  func(c echo.Context, in createRequest) error
		wantID string
	}{
		{
			name: "enveloped record",
			reply: func(c echo.Context, in createRequest) error {
				return c.JSON(http.StatusCreated, map[string]interface{}{
					"success": true,
					"data":    map[string]interface{}{"_id": "n-9", "patientId": in.PatientID, "billId": in.BillID, "message": in.Message},
				})
			},
			wantID: "n-9",
		},
		{
			name: "bare acknowledgement",
			reply: func(c echo.Context, _ createRequest) error {
				return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "message": "SMS saved"})
			},
		},
		{
			name: "json string reply",
			reply: func(c echo.Context, _ createRequest) error {
				return c.JSON(http.StatusCreated, "SMS record created")
			},
		},
		{
			name: "plain text reply",
			reply: func(c echo.Context, _ createRequest) error {
				return c.String(http.StatusCreated, "SMS saved")
			},
		},
		{
			name: "empty body",
			reply: func(c echo.Context, _ createRequest) error {
				return c.NoContent(http.StatusCreated)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewHTTPRepo(newFakeSMSBackend(t, tt.reply), false)
			rec, err := repo.Create(context.Background(), &Record{PatientID: "p-1", BillID: "b-1", Message: "hello"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.ID != tt.wantID || rec.Message != "hello" || rec.BillID != "b-1" || rec.PatientID != "p-1" {
				t.Errorf("unexpected record %+v", rec)
			}
		})
	}
}

func TestDispatcher_NotifyBillCreated_PlainTextAck(t *testing.T) {
	api := newFakeSMSBackend(t, func(c echo.Context, _ createRequest) error {
		return c.String(http.StatusCreated, "SMS saved")
	})
	d := NewDispatcher(NewHTTPRepo(api, false))
	if err := d.NotifyBillCreated(context.Background(), "p-1", "b-1", 70); err != nil {
		t.Errorf("expected a stored record to count as success, got %v", err)
	}
}

func TestHTTPRepo_ListByPatient(t *testing.T) {
	repo := NewHTTPRepo(newFakeSMSBackend(t, nil), false)

	items, err := repo.ListByPatient(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].ID != "n-1" || items[1].ID != "n-2" {
		t.Errorf("unexpected records %v", ids(items))
	}

	items, err = repo.ListByPatient(context.Background(), "none")
	if err != nil || len(items) != 0 {
		t.Errorf("expected empty list, got %v / %v", items, err)
	}
}
