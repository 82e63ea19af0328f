// Command notesmith serves the work-log notes API.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relic-ai/notesmith/internal/config"
	nerrors "github.com/relic-ai/notesmith/internal/errors"
	"github.com/relic-ai/notesmith/internal/health"
	"github.com/relic-ai/notesmith/internal/jira"
	"github.com/relic-ai/notesmith/internal/metrics"
	"github.com/relic-ai/notesmith/internal/server"
	"github.com/relic-ai/notesmith/internal/settings"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("db_path", cfg.DBPath).
		Msg("starting notesmith")

	store, err := settings.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open settings store")
	}
	defer store.Close()

	checker := health.NewChecker(logger)
	checker.Register("settings", store.Ping)
	checker.Register("jira", func(ctx context.Context) error {
		st, err := store.Get(ctx)
		if err != nil {
			// Nothing to probe until a Jira connection is configured.
			if errors.Is(err, nerrors.ErrConfigMissing) {
				return nil
			}
			return err
		}
		auth := &jira.BasicAuth{Email: st.JiraAuthUserEmail, APIToken: st.JiraAPIKey}
		client := jira.NewClient(st.JiraOrgURL, auth, cfg.HTTPTimeout, logger)
		_, err = client.ListProjects(ctx)
		return err
	})

	m := metrics.New()

	srv := server.NewServer(server.Config{
		ListenAddr: cfg.ListenAddr,
		APIKey:     cfg.APIKey,
		RateLimit: server.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSOrigins,
		FanoutLimit: cfg.FanoutLimit,
		HTTPTimeout: cfg.HTTPTimeout,
	}, store, checker, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := srv.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("notesmith stopped")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("shutdown timed out")
	}
}
