// Package console serves the front-office screens as a JSON API over the
// session, patient, billing and notification components.
package console

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinitech/frontoffice/internal/domain/billing"
	"github.com/clinitech/frontoffice/internal/domain/notification"
	"github.com/clinitech/frontoffice/internal/domain/patient"
	"github.com/clinitech/frontoffice/internal/domain/session"
	"github.com/clinitech/frontoffice/internal/platform/auth"
	"github.com/clinitech/frontoffice/internal/platform/middleware"
	"github.com/clinitech/frontoffice/internal/platform/storage"
)

// Version is reported by /health.
const Version = "0.1.0"

// Deps are the components the console is built from.
type Deps struct {
	Logger        zerolog.Logger
	Session       *session.Store
	SessionStore  storage.Store
	Patients      *patient.Service
	Billing       *billing.Manager
	Catalog       *billing.Catalog
	Notifications *notification.Dispatcher

	CORSOrigins []string
	LoginLimit  middleware.RateLimitConfig
}

// NewServer wires middleware and routes onto a new echo instance.
func NewServer(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(d.Logger)

	// Global middleware
	e.Use(middleware.Recovery(d.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.Logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(auth.RequireSession(auth.GuardConfig{Source: d.Session}))

	e.GET("/health", healthHandler(d.SessionStore))

	root := e.Group("")
	session.NewHandler(d.Session).RegisterRoutes(root, middleware.RateLimit(d.LoginLimit))
	newDashboardHandler(d.Session, d.Patients, d.Logger).RegisterRoutes(root)
	patient.NewHandler(d.Patients).RegisterRoutes(root)
	billing.NewHandler(d.Billing, d.Catalog).RegisterRoutes(root)
	notification.NewHandler(d.Notifications, d.Billing.CurrentPatient).
		RegisterRoutes(root, auth.RequireRole("doctor", "receptionist"))

	return e
}

func healthHandler(st storage.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := storage.CheckHealth(c.Request().Context(), st)
		status, code := "ok", http.StatusOK
		if !h.Healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]interface{}{
			"status":  status,
			"version": Version,
			"session": h,
		})
	}
}

// errorHandler renders every error as {"error": message}. Unexpected errors
// are logged and reported as 500 without details.
func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		} else {
			logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"error": msg})
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
