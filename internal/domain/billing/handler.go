package billing

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinitech/frontoffice/internal/domain/patient"
	"github.com/clinitech/frontoffice/internal/platform/apiclient"
	"github.com/clinitech/frontoffice/internal/platform/generation"
)

type Handler struct {
	mgr     *Manager
	catalog *Catalog
}

func NewHandler(mgr *Manager, catalog *Catalog) *Handler {
	return &Handler{mgr: mgr, catalog: catalog}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/billing", h.GetDesk)
	g.POST("/billing/lookup", h.Lookup)
	g.POST("/billing/reset", h.Reset)
	g.GET("/billing/catalog", h.GetCatalog)
	g.POST("/billing/bills", h.CreateBill)
	g.POST("/billing/checkout/begin", h.BeginCheckout)
	g.POST("/billing/checkout/coverage", h.InputCoverage)
	g.POST("/billing/checkout/submit", h.SubmitCheckout)
	g.POST("/billing/checkout/cancel", h.CancelCheckout)
}

type lookupRequest struct {
	PatientID string `json:"patientId"`
}

type coverageRequest struct {
	Value string `json:"value"`
}

type catalogResponse struct {
	HospitalServices []CatalogEntry `json:"hospitalServices"`
	Treatments       []CatalogEntry `json:"treatments"`
	CandidateTotal   float64        `json:"candidateTotal"`
}

type createResponse struct {
	Bill  *Bill  `json:"bill"`
	View  View   `json:"view"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) GetDesk(c echo.Context) error {
	return c.JSON(http.StatusOK, h.mgr.Snapshot())
}

func (h *Handler) Lookup(c echo.Context) error {
	var req lookupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	view, err := h.mgr.Load(c.Request().Context(), req.PatientID)
	if err != nil {
		return httpError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Reset(c echo.Context) error {
	return c.JSON(http.StatusOK, h.mgr.Reset())
}

func (h *Handler) GetCatalog(c echo.Context) error {
	ctx := c.Request().Context()
	services, treatments, err := h.catalog.Entries(ctx)
	if err != nil {
		return httpError(err, "Failed to load services and treatments")
	}
	sel := Selection{
		HospitalServices: c.QueryParams()["service"],
		Treatments:       c.QueryParams()["treatment"],
	}
	total, err := h.catalog.CandidateTotal(ctx, sel)
	if err != nil {
		return httpError(err, "Failed to load services and treatments")
	}
	resp := catalogResponse{
		HospitalServices: nonNil(services),
		Treatments:       nonNil(treatments),
		CandidateTotal:   total,
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateBill(c echo.Context) error {
	var sel Selection
	if err := c.Bind(&sel); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.mgr.CreateBill(c.Request().Context(), sel)
	if b != nil && err != nil {
		// The bill exists even though the follow-up failed.
		status := http.StatusBadGateway
		if errors.Is(err, generation.ErrStaleResponse) {
			status = http.StatusConflict
		}
		return c.JSON(status, createResponse{Bill: b, View: h.mgr.Snapshot(), Error: err.Error()})
	}
	if err != nil {
		return httpError(err, "Error creating bill")
	}
	return c.JSON(http.StatusCreated, createResponse{Bill: b, View: h.mgr.Snapshot()})
}

func (h *Handler) BeginCheckout(c echo.Context) error {
	view, err := h.mgr.BeginCheckout()
	if err != nil {
		return httpError(err, "Request failed")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) InputCoverage(c echo.Context) error {
	var req coverageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	view, err := h.mgr.InputCoverage(req.Value)
	if err != nil {
		return httpError(err, "Request failed")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) SubmitCheckout(c echo.Context) error {
	view, err := h.mgr.SubmitCheckout(c.Request().Context())
	if err != nil {
		return httpError(err, "Error updating checkout details")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) CancelCheckout(c echo.Context) error {
	view, err := h.mgr.CancelCheckout()
	if err != nil {
		return httpError(err, "Request failed")
	}
	return c.JSON(http.StatusOK, view)
}

func nonNil(items []CatalogEntry) []CatalogEntry {
	if items == nil {
		return []CatalogEntry{}
	}
	return items
}

func httpError(err error, fallback string) error {
	switch {
	case errors.Is(err, ErrEmptySelection), errors.Is(err, ErrInvalidCoverage),
		errors.Is(err, ErrNoPatient), errors.Is(err, patient.ErrInvalidID),
		errors.Is(err, apiclient.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyCheckedOut), errors.Is(err, ErrIllegalTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, generation.ErrStaleResponse):
		return echo.NewHTTPError(http.StatusConflict, "a newer request replaced this one")
	case errors.Is(err, apiclient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, fallback)
	case errors.Is(err, apiclient.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "your session has expired, please sign in again")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, fallback)
	}
}
