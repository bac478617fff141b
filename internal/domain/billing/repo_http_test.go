package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

type fakeBilling struct {
	authHeaders []string
	lastAdd     SubBillRequest
	lastCheck   CheckoutRequest
}

func newFakeBillingBackend(t *testing.T) (*apiclient.Client, *fakeBilling) {
	t.Helper()
	fb := &fakeBilling{}
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			fb.authHeaders = append(fb.authHeaders, c.Request().Header.Get("Authorization"))
			return next(c)
		}
	})

	e.GET("/api/bills/bill/patient/:id", func(c echo.Context) error {
		switch c.Param("id") {
		case "p-1":
			return c.JSON(http.StatusOK, map[string]interface{}{
				"success": true,
				"data": map[string]interface{}{
					"_id":               "b-1",
					"patientId":         "p-1",
					"finalAmount":       1000,
					"insuranceCoverage": 300,
					"isCheckedOut":      false,
					"subBills":          []map[string]interface{}{{"_id": "s-1", "dailyAmount": 1000}},
				},
			})
		case "empty":
			return c.JSON(http.StatusOK, map[string]interface{}{"success": false, "message": "No bill found"})
		default:
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Bill not found"})
		}
	})
	e.POST("/api/bills/bill", func(c echo.Context) error {
		if err := c.Bind(&fb.lastAdd); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"_id": "b-2", "patientId": fb.lastAdd.PatientID, "finalAmount": fb.lastAdd.DailyAmount},
		})
	})
	e.PUT("/api/bills/checkout/:id", func(c echo.Context) error {
		if err := c.Bind(&fb.lastCheck); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"_id": "b-1", "patientId": c.Param("id"), "finalAmount": 1000,
				"insuranceCoverage": fb.lastCheck.InsuranceCoverage, "isCheckedOut": true,
			},
		})
	})
	e.GET("/api/bills/hospitalservices", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    []map[string]interface{}{{"id": "s1", "name": "X-Ray", "price": 50}},
		})
	})
	e.GET("/api/bills/treatments", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    []map[string]interface{}{{"_id": "t1", "name": "Dressing", "price": 20}},
		})
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	tokens := apiclient.TokenSourceFunc(func() string { return "tok" })
	return apiclient.New(srv.URL, apiclient.WithTokenSource(tokens)), fb
}

func TestHTTPRepo_GetByPatient(t *testing.T) {
	api, _ := newFakeBillingBackend(t)
	repo := NewHTTPRepo(api, false)

	b, err := repo.GetByPatient(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ID != "b-1" || b.FinalAmount != 1000 || b.InsuranceCoverage != 300 || len(b.SubBills) != 1 {
		t.Errorf("unexpected bill %+v", b)
	}
	if b.SubBills[0].ID != "s-1" {
		t.Errorf("expected sub-bill id s-1, got %q", b.SubBills[0].ID)
	}
}

func TestHTTPRepo_GetByPatient_Missing(t *testing.T) {
	api, _ := newFakeBillingBackend(t)
	repo := NewHTTPRepo(api, false)

	if _, err := repo.GetByPatient(context.Background(), "empty"); !errors.Is(err, apiclient.ErrUnsuccessful) {
		t.Errorf("expected ErrUnsuccessful, got %v", err)
	}
	if _, err := repo.GetByPatient(context.Background(), "nope"); !errors.Is(err, apiclient.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPRepo_AddSubBillAndCheckout(t *testing.T) {
	api, fb := newFakeBillingBackend(t)
	repo := NewHTTPRepo(api, false)
	ctx := context.Background()

	b, err := repo.AddSubBill(ctx, SubBillRequest{
		PatientID: "p-1", DailyAmount: 70,
		HospitalServices: []string{"X-Ray"}, Treatments: []string{"Dressing"},
	})
	if err != nil {
		t.Fatalf("add sub-bill: %v", err)
	}
	if b.ID != "b-2" || b.FinalAmount != 70 {
		t.Errorf("unexpected bill %+v", b)
	}
	if fb.lastAdd.DailyAmount != 70 || len(fb.lastAdd.Treatments) != 1 {
		t.Errorf("unexpected request body %+v", fb.lastAdd)
	}

	b, err = repo.Checkout(ctx, "p-1", CheckoutRequest{InsuranceCoverage: 500, AmountDue: 500})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !b.IsCheckedOut || b.InsuranceCoverage != 500 {
		t.Errorf("unexpected checked-out bill %+v", b)
	}
	if fb.lastCheck.AmountDue != 500 {
		t.Errorf("expected amountDue 500 on the wire, got %v", fb.lastCheck.AmountDue)
	}
}

func TestHTTPRepo_Catalog(t *testing.T) {
	api, _ := newFakeBillingBackend(t)
	repo := NewHTTPRepo(api, false)

	services, err := repo.ListHospitalServices(context.Background())
	if err != nil || len(services) != 1 || services[0].ID != "s1" {
		t.Errorf("unexpected services %v / %v", services, err)
	}
	treatments, err := repo.ListTreatments(context.Background())
	if err != nil || len(treatments) != 1 || treatments[0].ID != "t1" {
		t.Errorf("unexpected treatments %v / %v", treatments, err)
	}
}

func TestHTTPRepo_BearerIsOptIn(t *testing.T) {
	api, fb := newFakeBillingBackend(t)
	_, _ = NewHTTPRepo(api, false).GetByPatient(context.Background(), "p-1")
	_, _ = NewHTTPRepo(api, true).GetByPatient(context.Background(), "p-1")

	if len(fb.authHeaders) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(fb.authHeaders))
	}
	if fb.authHeaders[0] != "" {
		t.Errorf("expected no bearer by default, got %q", fb.authHeaders[0])
	}
	if fb.authHeaders[1] != "Bearer tok" {
		t.Errorf("expected bearer when enabled, got %q", fb.authHeaders[1])
	}
}
