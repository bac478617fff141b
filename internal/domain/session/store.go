// Package session owns the authenticated doctor's identity and bearer token.
// Memory and durable storage are always written together.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/clinitech/frontoffice/internal/platform/auth"
	"github.com/clinitech/frontoffice/internal/platform/storage"
)

// Durable storage keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Navigation targets signalled after session transitions.
const (
	RouteDashboard = "/doctordashboard"
	RouteLogin     = "/"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSignupFailed       = errors.New("signup failed")
)

// Navigator receives navigation signals from the store.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Option configures a Store.
type Option func(*Store)

// WithNavigator sets the navigation sink.
func WithNavigator(n Navigator) Option {
	return func(s *Store) { s.nav = n }
}

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the single owner of session state.
type Store struct {
	backend Backend
	storage storage.Store
	nav     Navigator
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	token   string
	user    *User
	loading bool

	restoreOnce sync.Once
	restored    chan struct{}
}

// NewStore creates an empty, loading session. Call Restore once at startup.
func NewStore(backend Backend, st storage.Store, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		storage:  st,
		nav:      NavigatorFunc(func(string) {}),
		logger:   zerolog.Nop(),
		now:      time.Now,
		loading:  true,
		restored: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Token: s.token, IsLoading: s.loading}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Token implements apiclient.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity implements auth.SessionSource.
func (s *Store) Identity() (auth.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.user == nil {
		return auth.Identity{}, false
	}
	return auth.Identity{UserID: s.user.ID, Role: s.user.UserRole}, true
}

// Ready is closed once Restore has finished.
func (s *Store) Ready() <-chan struct{} { return s.restored }

// WaitReady blocks until Restore has finished or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.restored:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restore loads the session from durable storage. It always completes the
// loading phase; a returned error only reports a storage problem, the session
// is then left empty.
func (s *Store) Restore(ctx context.Context) error {
	var restoreErr error
	s.restoreOnce.Do(func() {
		restoreErr = s.restore(ctx)
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		close(s.restored)
	})
	return restoreErr
}

func (s *Store) restore(ctx context.Context) error {
	token, tokErr := s.storage.Get(ctx, KeyToken)
	rawUser, userErr := s.storage.Get(ctx, KeyUser)

	for _, err := range []error{tokErr, userErr} {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("read session: %w", err)
		}
	}

	if tokErr != nil && userErr != nil {
		return nil
	}

	var user *User
	if tokErr == nil && userErr == nil && token != "" {
		var u User
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			s.logger.Warn().Err(err).Msg("discarding undecodable stored identity")
		} else if tokenExpired(token, s.now()) {
			s.logger.Info().Msg("discarding expired stored token")
		} else {
			user = &u
		}
	}

	if user == nil {
		// Half-written or stale session; remove it so storage matches memory.
		if err := s.storage.Delete(ctx, KeyToken, KeyUser); err != nil {
			return fmt.Errorf("clear stale session: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	s.token, s.user = token, user
	s.mu.Unlock()
	s.logger.Info().Str("user_id", user.ID).Msg("session restored")
	return nil
}

// Login authenticates and, on success, persists the session and navigates to
// the dashboard. On failure the prior session is untouched.
func (s *Store) Login(ctx context.Context, email, password string) (Snapshot, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return s.Snapshot(), ErrInvalidCredentials
	}

	res, err := s.backend.Login(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("login failed")
		return s.Snapshot(), fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if res == nil || res.Token == "" || res.User == nil {
		s.logger.Warn().Str("email", email).Msg("login response without token")
		return s.Snapshot(), ErrInvalidCredentials
	}
	return s.establish(ctx, res)
}

// Signup registers a new account and behaves like Login on success.
func (s *Store) Signup(ctx context.Context, req SignupRequest) (Snapshot, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return s.Snapshot(), fmt.Errorf("%w: %w", ErrSignupFailed, err)
	}

	res, err := s.backend.Register(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", req.Email).Msg("signup failed")
		return s.Snapshot(), fmt.Errorf("%w: %w", ErrSignupFailed, err)
	}
	if res == nil || res.Token == "" || res.User == nil {
		return s.Snapshot(), fmt.Errorf("%w: response without token", ErrSignupFailed)
	}
	return s.establish(ctx, res)
}

// establish writes the session to storage and memory under one lock, then
// signals the dashboard.
func (s *Store) establish(ctx context.Context, res *AuthResult) (Snapshot, error) {
	rawUser, err := json.Marshal(res.User)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("encode identity: %w", err)
	}

	s.mu.Lock()
	if err := s.storage.SetAll(ctx, map[string]string{
		KeyToken: res.Token,
		KeyUser:  string(rawUser),
	}); err != nil {
		s.mu.Unlock()
		return s.Snapshot(), fmt.Errorf("persist session: %w", err)
	}
	u := *res.User
	s.token, s.user = res.Token, &u
	s.mu.Unlock()

	s.logger.Info().Str("user_id", u.ID).Msg("session established")
	s.nav.Navigate(RouteDashboard)
	return s.Snapshot(), nil
}

// Logout clears memory and durable storage. It never fails; storage errors
// are logged.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.clearLocked(ctx)
	s.mu.Unlock()

	s.nav.Navigate(RouteLogin)
}

// clearLocked empties memory and removes the durable keys. A failed delete is
// retried once; if that fails too the keys are overwritten with empty values,
// which restore treats as no session.
func (s *Store) clearLocked(ctx context.Context) {
	s.token, s.user = "", nil

	err := s.storage.Delete(ctx, KeyToken, KeyUser)
	if err == nil {
		return
	}
	s.logger.Warn().Err(err).Msg("clear stored session, retrying")
	if err = s.storage.Delete(ctx, KeyToken, KeyUser); err == nil {
		return
	}
	if tombErr := s.storage.SetAll(ctx, map[string]string{KeyToken: "", KeyUser: ""}); tombErr != nil {
		s.logger.Error().Err(err).AnErr("tombstone_error", tombErr).
			Msg("stored session could not be cleared")
		return
	}
	s.logger.Warn().Err(err).Msg("stored session blanked instead of deleted")
}

// Invalidate ends the session after the backend rejected token. A rejection
// of a token that has since been replaced, or of no token, is ignored.
func (s *Store) Invalidate(token string, cause error) {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		s.logger.Debug().Err(cause).Msg("ignoring rejection of a replaced token")
		return
	}
	s.clearLocked(context.Background())
	s.mu.Unlock()

	s.logger.Warn().Err(cause).Msg("session invalidated by backend")
	s.nav.Navigate(RouteLogin)
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens never expire client-side.
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now)
}
