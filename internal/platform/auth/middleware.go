// Package auth guards console routes with the doctor's session.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// Identity is the part of a session the guard needs.
type Identity struct {
	UserID string
	Role   string
}

// SessionSource is implemented by the session store adapter wired in main.
type SessionSource interface {
	// WaitReady blocks until the persisted session has been restored.
	WaitReady(ctx context.Context) error
	// Identity returns the signed-in doctor, if any.
	Identity() (Identity, bool)
}

// GuardConfig configures RequireSession.
type GuardConfig struct {
	Source SessionSource
	// Skipper exempts requests from the session check. Requests it skips still
	// wait for restore.
	Skipper func(c echo.Context) bool
	// RestoreTimeout bounds the wait for session restore.
	RestoreTimeout time.Duration
}

// RequireSession rejects requests without a signed-in doctor with 401. Every
// request first waits for session restore, so no decision is made while the
// session is still loading.
func RequireSession(cfg GuardConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = AuthSkipper
	}
	if cfg.RestoreTimeout <= 0 {
		cfg.RestoreTimeout = 5 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), cfg.RestoreTimeout)
			err := cfg.Source.WaitReady(ctx)
			cancel()
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session is still loading")
			}

			id, ok := cfg.Source.Identity()
			if ok {
				c.Set("user_id", id.UserID)
				reqCtx := c.Request().Context()
				reqCtx = context.WithValue(reqCtx, UserIDKey, id.UserID)
				reqCtx = context.WithValue(reqCtx, UserRolesKey, []string{id.Role})
				c.SetRequest(c.Request().WithContext(reqCtx))
			}

			if cfg.Skipper(c) {
				return next(c)
			}
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "please sign in")
			}
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
