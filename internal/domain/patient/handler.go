package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients/:id", h.GetPatient)
	g.GET("/patients/:id/metrics", h.ListMetrics)
	g.POST("/patients/:id/metrics", h.AddMetric)
	g.PUT("/patients/:id/metrics/:metricId", h.UpdateMetric)
	g.DELETE("/patients/:id/metrics/:metricId", h.DeleteMetric)
}

type patientPage struct {
	Patient *Patient        `json:"patient"`
	Metrics []*HealthMetric `json:"metrics"`
	// MetricsError is set when the metrics panel could not be loaded; the
	// record itself is still shown.
	MetricsError string `json:"metricsError,omitempty"`
}

func (h *Handler) GetPatient(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.Detail(ctx, c.Param("id"))
	if err != nil {
		return httpError(err, "patient not found")
	}
	page := patientPage{Patient: p, Metrics: []*HealthMetric{}}
	metrics, err := h.svc.ListMetrics(ctx, c.Param("id"))
	if err != nil {
		h.svc.logger.Warn().Err(err).Str("patient_id", p.ID).Msg("health metrics unavailable")
		page.MetricsError = "health metrics are unavailable right now"
	} else if metrics != nil {
		page.Metrics = metrics
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) ListMetrics(c echo.Context) error {
	items, err := h.svc.ListMetrics(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, "patient not found")
	}
	if items == nil {
		items = []*HealthMetric{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddMetric(c echo.Context) error {
	var m HealthMetric
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.AddMetric(c.Request().Context(), c.Param("id"), &m)
	if err != nil {
		return httpError(err, "Failed to save health metrics")
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateMetric(c echo.Context) error {
	var m HealthMetric
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m.ID = c.Param("metricId")
	m.PatientID = c.Param("id")
	updated, err := h.svc.UpdateMetric(c.Request().Context(), &m)
	if err != nil {
		return httpError(err, "Failed to save health metrics")
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteMetric(c echo.Context) error {
	if err := h.svc.DeleteMetric(c.Request().Context(), c.Param("metricId")); err != nil {
		return httpError(err, "Failed to delete record")
	}
	return c.NoContent(http.StatusNoContent)
}

// httpError maps service errors to responses. fallback is shown for backend
// failures that carry no useful message.
func httpError(err error, fallback string) error {
	switch {
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidMetric), errors.Is(err, apiclient.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apiclient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, fallback)
	case errors.Is(err, apiclient.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "your session has expired, please sign in again")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, fallback)
	}
}
