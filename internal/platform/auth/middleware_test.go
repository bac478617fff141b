package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakeSource struct {
	ready chan struct{}
	id    *Identity
}

func newFakeSource(id *Identity) *fakeSource {
	s := &fakeSource{ready: make(chan struct{}), id: id}
	close(s.ready)
	return s
}

func (f *fakeSource) WaitReady(ctx context.Context) error {
	select {
	case <-f.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) Identity() (Identity, bool) {
	if f.id == nil {
		return Identity{}, false
	}
	return *f.id, true
}

func runGuard(t *testing.T, src SessionSource, path string) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)

	var seen echo.Context
	h := RequireSession(GuardConfig{Source: src, RestoreTimeout: 50 * time.Millisecond})(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	return rec, seen, err
}

func TestRequireSession_Authenticated(t *testing.T) {
	src := newFakeSource(&Identity{UserID: "doc-1", Role: "doctor"})
	rec, c, err := runGuard(t, src, "/billing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got := UserIDFromContext(c.Request().Context()); got != "doc-1" {
		t.Errorf("expected user id in context, got %q", got)
	}
	if got := c.Get("user_id"); got != "doc-1" {
		t.Errorf("expected user_id on echo context, got %v", got)
	}
	if roles := RolesFromContext(c.Request().Context()); len(roles) != 1 || roles[0] != "doctor" {
		t.Errorf("expected doctor role, got %v", roles)
	}
}

func TestRequireSession_Unauthenticated(t *testing.T) {
	_, _, err := runGuard(t, newFakeSource(nil), "/billing")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestRequireSession_PublicPathSkipsCheck(t *testing.T) {
	rec, _, err := runGuard(t, newFakeSource(nil), "/login")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireSession_WaitsForRestore(t *testing.T) {
	src := &fakeSource{ready: make(chan struct{})}
	_, _, err := runGuard(t, src, "/login")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 while loading, got %d", httpErr.Code)
	}
}
