package notification

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	dispatcher *Dispatcher
	// currentPatient supplies the billing desk's patient when the request
	// does not name one.
	currentPatient func() string
}

func NewHandler(d *Dispatcher, currentPatient func() string) *Handler {
	return &Handler{dispatcher: d, currentPatient: currentPatient}
}

// RegisterRoutes mounts the routes; sendMW guards the direct SMS route only.
func (h *Handler) RegisterRoutes(g *echo.Group, sendMW ...echo.MiddlewareFunc) {
	g.GET("/billing/sms", h.List)
	g.POST("/sms/send", h.Send, sendMW...)
}

type listResponse struct {
	PatientID     string    `json:"patientId"`
	Notifications []*Record `json:"notifications"`
	// Empty is the message shown in place of an empty table.
	Empty string `json:"empty,omitempty"`
	Error string `json:"error,omitempty"`
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// List handles GET /billing/sms?patientId=...
func (h *Handler) List(c echo.Context) error {
	patientID := c.QueryParam("patientId")
	if patientID == "" && h.currentPatient != nil {
		patientID = h.currentPatient()
	}
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patientId is required")
	}

	resp := listResponse{PatientID: patientID, Notifications: []*Record{}}
	items, err := h.dispatcher.ListNotifications(c.Request().Context(), patientID)
	if err != nil {
		h.dispatcher.logger.Warn().Err(err).Str("patient_id", patientID).Msg("sms records unavailable")
		resp.Error = "SMS records are unavailable right now"
	} else {
		resp.Notifications = items
	}
	if len(resp.Notifications) == 0 {
		resp.Empty = "No SMS notifications for this patient yet."
	}
	return c.JSON(http.StatusOK, resp)
}

// Send handles POST /sms/send.
func (h *Handler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	err := h.dispatcher.Deliver(c.Request().Context(), req.Phone, req.Message)
	switch {
	case err == nil:
		return c.JSON(http.StatusAccepted, map[string]string{"status": "sent"})
	case errors.Is(err, ErrDeliveryDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrMissingField):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "Error sending SMS")
	}
}
