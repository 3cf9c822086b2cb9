package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpapi "github.com/i474232898/nowplaying-aggregator/internal/api/http"
	"github.com/i474232898/nowplaying-aggregator/internal/config"
	"github.com/i474232898/nowplaying-aggregator/internal/logging"
	"github.com/i474232898/nowplaying-aggregator/internal/scheduler"
	"github.com/i474232898/nowplaying-aggregator/internal/spotify"
	"github.com/i474232898/nowplaying-aggregator/internal/status"
	"github.com/i474232898/nowplaying-aggregator/internal/store"
	"github.com/i474232898/nowplaying-aggregator/internal/supervisor"
	"github.com/i474232898/nowplaying-aggregator/internal/weather"
	"github.com/i474232898/nowplaying-aggregator/internal/weather/providers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Info().Err(err).Msg("no .env file loaded")
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	for _, w := range cfg.Warnings() {
		logging.Warn().Msg(w)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	cache, err := store.NewFileStore(cfg.StorageDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open storage")
	}
	tracker := status.New()

	creds := spotify.NewCredentialManager(httpClient, spotify.ClientCredentials{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
	}, cache, tracker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start from a fresh token when possible; the poller retries on its own.
	refreshCtx, cancelRefresh := context.WithTimeout(ctx, cfg.HTTPTimeout)
	if _, err := creds.RefreshAndStore(refreshCtx); err != nil {
		logging.Warn().Err(err).Msg("startup token refresh failed")
	}
	cancelRefresh()

	if err := store.EnsureDefault(cache, spotify.PlaybackKey, spotify.InactiveSnapshot()); err != nil {
		logging.Error().Err(err).Msg("failed to seed playback cache")
	}
	if err := store.EnsureDefault(cache, weather.CacheKey, weather.Snapshot{}); err != nil {
		logging.Error().Err(err).Msg("failed to seed weather cache")
	}

	// Poll loops run under one supervisor; canceling ctx stops and joins both.
	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.Add(spotify.NewPoller(creds, spotify.NewFetcher(httpClient, tracker), cache, cfg.Spotify.PollInterval))
	tree.Add(weather.NewPoller(
		providers.NewOpenWeatherProvider(httpClient, cfg.Weather.APIKey, cfg.Weather.Location, cfg.Weather.Units),
		cache,
		weather.PollerConfig{
			Lang:         cfg.Weather.Lang,
			Interval:     cfg.Weather.PollInterval,
			RetryInitial: cfg.Weather.RetryInitial,
			RetrySteady:  cfg.Weather.RetrySteady,
		},
	))
	errCh := tree.ServeBackground(ctx)

	sched := scheduler.New(tracker, cfg.StatusLogInterval)
	if err := sched.Start(); err != nil {
		logging.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := httpapi.NewApp(cfg.CORSOrigins)
	httpapi.RegisterRoutes(app, httpapi.Deps{Cache: cache, Tracker: tracker, Tokens: creds})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logging.Error().Err(err).Msg("fiber server stopped")
		}
	}()
	logging.Info().Str("port", cfg.Port).Msg("server started")

	// Wait for termination signal
	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("error during server shutdown")
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped with error")
	}
	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
	}
	logging.Info().Msg("stopped")
}
