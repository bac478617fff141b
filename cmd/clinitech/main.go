package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinitech/frontoffice/internal/config"
	"github.com/clinitech/frontoffice/internal/console"
	"github.com/clinitech/frontoffice/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinitech",
		Short:        "Clinic front-office console",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(signupCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(billCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(smsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the front-office console server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		l := newLogger(nil)
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire components")
	}
	defer a.Close()
	logger.Info().Str("session_store", cfg.SessionStore).Str("backend", cfg.BackendURL).Msg("components ready")

	// Requests wait on restore, so it can run alongside startup.
	go func() {
		if err := a.session.Restore(ctx); err != nil {
			logger.Warn().Err(err).Msg("session restore failed")
		}
	}()

	loginLimit := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateLimitRPS,
		BurstSize:         cfg.LoginRateLimitBurst,
	}
	if loginLimit.RequestsPerSecond <= 0 {
		loginLimit = middleware.DefaultRateLimitConfig()
	}

	e := console.NewServer(console.Deps{
		Logger:        logger,
		Session:       a.session,
		SessionStore:  a.sessionStore,
		Patients:      a.patients,
		Billing:       a.billing,
		Catalog:       a.catalog,
		Notifications: a.notifications,
		CORSOrigins:   cfg.CORSOrigins,
		LoginLimit:    loginLimit,
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
