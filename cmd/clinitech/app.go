package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/clinitech/frontoffice/internal/config"
	"github.com/clinitech/frontoffice/internal/domain/billing"
	"github.com/clinitech/frontoffice/internal/domain/notification"
	"github.com/clinitech/frontoffice/internal/domain/patient"
	"github.com/clinitech/frontoffice/internal/domain/session"
	"github.com/clinitech/frontoffice/internal/platform/apiclient"
	"github.com/clinitech/frontoffice/internal/platform/storage"
)

// app holds the wired front-office components shared by serve and the
// one-shot commands.
type app struct {
	cfg           *config.Config
	logger        zerolog.Logger
	api           *apiclient.Client
	sessionStore  storage.Store
	session       *session.Store
	patients      *patient.Service
	billing       *billing.Manager
	catalog       *billing.Catalog
	notifications *notification.Dispatcher

	closers []func()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// openSessionStore builds the storage driver selected by SESSION_STORE.
func openSessionStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		st, err := storage.OpenRedis(ctx, cfg.RedisURL, cfg.SessionNamespace)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case config.StorePostgres:
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		st := storage.NewPGStore(pool, cfg.SessionNamespace)
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("prepare session table: %w", err)
		}
		return st, st.Close, nil
	case config.StoreMemory:
		return storage.NewMemoryStore(), func() {}, nil
	default:
		return storage.NewFileStore(cfg.SessionFile), func() {}, nil
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	st, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, sessionStore: st, closers: []func(){closeStore}}

	a.api = apiclient.New(cfg.BackendURL,
		apiclient.WithTimeout(cfg.HTTPTimeout),
		apiclient.WithLogger(logger),
	)
	a.session = session.NewStore(session.NewHTTPBackend(a.api), st,
		session.WithLogger(logger),
		session.WithNavigator(session.NavigatorFunc(func(route string) {
			logger.Info().Str("route", route).Msg("navigate")
		})),
	)
	apiclient.WithTokenSource(a.session)(a.api)
	a.api.SetUnauthorizedHandler(a.session.Invalidate)

	patientRepo := patient.NewHTTPRepo(a.api)
	a.patients = patient.NewService(patientRepo, patient.NewHTTPMetricRepo(a.api), patient.WithLogger(logger))

	dispatcherOpts := []notification.Option{notification.WithLogger(logger)}
	if cfg.SMSDeliveryEnabled() {
		sender := notification.NewClickSendSender(notification.ClickSendConfig{
			Username: cfg.ClickSendUsername,
			APIKey:   cfg.ClickSendAPIKey,
			From:     cfg.ClickSendFrom,
			RPS:      cfg.SMSRateLimitRPS,
			Burst:    cfg.SMSRateLimitBurst,
			Timeout:  cfg.HTTPTimeout,
		}, logger)
		// The resolver goes to the repository directly so it never races the
		// billing desk's own patient lookup.
		contacts := notification.ContactResolverFunc(func(ctx context.Context, patientID string) (string, error) {
			p, err := patientRepo.Lookup(ctx, patientID)
			if err != nil {
				return "", err
			}
			return p.ContactNumber, nil
		})
		dispatcherOpts = append(dispatcherOpts, notification.WithDelivery(sender, contacts))
		logger.Info().Msg("sms delivery enabled")
	}
	a.notifications = notification.NewDispatcher(notification.NewHTTPRepo(a.api, cfg.BillingSendAuth), dispatcherOpts...)

	billRepo := billing.NewHTTPRepo(a.api, cfg.BillingSendAuth)
	a.catalog = billing.NewCatalog(billRepo, logger)
	a.billing = billing.NewManager(billRepo, a.catalog, a.notifications,
		billing.WithLogger(logger),
		billing.WithPatientFinder(a.patients),
	)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadApp is the common prologue of the one-shot commands: config, wiring
// and a synchronous session restore.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, newLogger(cfg).Level(zerolog.WarnLevel))
	if err != nil {
		return nil, err
	}
	if err := a.session.Restore(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("session restore failed")
	}
	return a, nil
}

// requireSession fails one-shot commands that need a signed-in doctor.
func (a *app) requireSession() (*session.User, error) {
	snap := a.session.Snapshot()
	if !snap.Authenticated() {
		return nil, fmt.Errorf("not signed in, run: clinitech login")
	}
	return snap.User, nil
}
