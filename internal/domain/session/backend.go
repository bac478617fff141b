package session

import (
	"context"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

const (
	loginPath    = "/api/users/login"
	registerPath = "/api/users/register"
)

// Backend issues tokens.
type Backend interface {
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	Register(ctx context.Context, req SignupRequest) (*AuthResult, error)
}

// HTTPBackend implements Backend against the clinic REST API.
type HTTPBackend struct {
	api *apiclient.Client
}

// NewHTTPBackend creates an HTTPBackend.
func NewHTTPBackend(api *apiclient.Client) *HTTPBackend {
	return &HTTPBackend{api: api}
}

func (b *HTTPBackend) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	var res AuthResult
	if err := b.api.Post(ctx, loginPath, creds, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *HTTPBackend) Register(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	var res AuthResult
	if err := b.api.Post(ctx, registerPath, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
