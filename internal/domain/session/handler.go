package session

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the session routes. credentialMW wraps only the
// routes that accept a password.
func (h *Handler) RegisterRoutes(g *echo.Group, credentialMW ...echo.MiddlewareFunc) {
	g.GET("/session", h.GetSession)
	g.POST("/login", h.Login, credentialMW...)
	g.POST("/signup", h.Signup, credentialMW...)
	g.POST("/logout", h.Logout)
}

// sessionResponse is the view of a session returned to the browser.
type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	User          *User  `json:"user,omitempty"`
	IsLoading     bool   `json:"isLoading"`
	Redirect      string `json:"redirect,omitempty"`
}

func toResponse(snap Snapshot, redirect string) sessionResponse {
	return sessionResponse{
		Authenticated: snap.Authenticated(),
		User:          snap.User,
		IsLoading:     snap.IsLoading,
		Redirect:      redirect,
	}
}

func (h *Handler) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, toResponse(h.store.Snapshot(), ""))
}

func (h *Handler) Login(c echo.Context) error {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	snap, err := h.store.Login(c.Request().Context(), creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, apiclient.ErrNetwork) {
			return echo.NewHTTPError(http.StatusBadGateway, "could not reach the server, please try again")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	return c.JSON(http.StatusOK, toResponse(snap, RouteDashboard))
}

func (h *Handler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	snap, err := h.store.Signup(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, apiclient.ErrNetwork):
			return echo.NewHTTPError(http.StatusBadGateway, "could not reach the server, please try again")
		case errors.Is(err, apiclient.ErrValidation), errors.Is(err, apiclient.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusBadRequest, "signup was rejected: "+backendMessage(err))
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, toResponse(snap, RouteDashboard))
}

func (h *Handler) Logout(c echo.Context) error {
	h.store.Logout(c.Request().Context())
	return c.JSON(http.StatusOK, toResponse(h.store.Snapshot(), RouteLogin))
}

func backendMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "please check your details"
}
