package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths reachable without a signed-in doctor.
var publicPaths = map[string]bool{
	"/health":  true,
	"/session": true,
	"/login":   true,
	"/signup":  true,
	"/logout":  true,
}

// AuthSkipper returns true for requests whose route should skip the session check.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
