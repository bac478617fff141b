package console

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinitech/frontoffice/internal/domain/patient"
	"github.com/clinitech/frontoffice/internal/domain/session"
	"github.com/clinitech/frontoffice/internal/platform/auth"
)

type dashboardHandler struct {
	session  *session.Store
	patients *patient.Service
	logger   zerolog.Logger
}

func newDashboardHandler(s *session.Store, p *patient.Service, logger zerolog.Logger) *dashboardHandler {
	return &dashboardHandler{session: s, patients: p, logger: logger}
}

func (h *dashboardHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/dashboard", h.Get)
}

type dashboardResponse struct {
	Doctor   *session.User      `json:"doctor"`
	Patients []*patient.Patient `json:"patients"`
	Error    string             `json:"error,omitempty"`
}

// Get greets the signed-in doctor and lists their patients. The doctor is the
// one the session guard admitted the request for. A patient list failure
// leaves the list empty instead of failing the page.
func (h *dashboardHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID := auth.UserIDFromContext(ctx)
	snap := h.session.Snapshot()
	if doctorID == "" || snap.User == nil || snap.User.ID != doctorID {
		return echo.NewHTTPError(http.StatusUnauthorized, "please sign in")
	}
	resp := dashboardResponse{Doctor: snap.User, Patients: []*patient.Patient{}}

	items, err := h.patients.ListForDoctor(ctx, doctorID)
	switch {
	case err != nil:
		h.logger.Warn().Err(err).Str("doctor_id", doctorID).Msg("doctor patient list unavailable")
		resp.Error = "patients could not be loaded"
	case items != nil:
		resp.Patients = items
	}
	return c.JSON(http.StatusOK, resp)
}
