package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/i474232898/nowplaying-aggregator/internal/logging"
	"github.com/i474232898/nowplaying-aggregator/internal/spotify"
	"github.com/i474232898/nowplaying-aggregator/internal/status"
	"github.com/i474232898/nowplaying-aggregator/internal/store"
	"github.com/i474232898/nowplaying-aggregator/internal/weather"
)

// refreshTimeout bounds the synchronous token exchange behind /spotify/refresh.
const refreshTimeout = 15 * time.Second

// TokenRefresher forces a token exchange and persists the result.
type TokenRefresher interface {
	RefreshAndStore(ctx context.Context) (spotify.AccessToken, error)
	HasTokenFile() bool
}

// Deps are the collaborators the read-facing routes need.
type Deps struct {
	Cache   *store.FileStore
	Tracker *status.Tracker
	Tokens  TokenRefresher
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	app.Get("/spotify", func(c *fiber.Ctx) error {
		return c.JSON(store.Read(deps.Cache, spotify.PlaybackKey, spotify.InactiveSnapshot()))
	})

	app.Get("/spotify/debug", func(c *fiber.Ctx) error {
		snap := deps.Tracker.Snapshot()
		return c.JSON(fiber.Map{
			"token": fiber.Map{
				"has_token_file":      deps.Tokens.HasTokenFile(),
				"last_refresh_status": snap.Refresh.HTTPStatus,
				"last_refresh_ok":     snap.Refresh.OK,
				"last_refresh_at":     snap.Refresh.At,
			},
			"fetch": fiber.Map{
				"last_status": snap.Fetch.HTTPStatus,
				"last_ok":     snap.Fetch.OK,
				"last_when":   snap.Fetch.At,
			},
		})
	})

	app.Get("/spotify/refresh", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), refreshTimeout)
		defer cancel()

		if _, err := deps.Tokens.RefreshAndStore(ctx); err != nil {
			return refreshError(err)
		}

		id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		return c.JSON(fiber.Map{
			"ok":           true,
			"refreshed_at": time.Now().UTC().Format(time.RFC3339),
			"request_id":   id,
		})
	})

	app.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(store.Read(deps.Cache, weather.CacheKey, weather.Snapshot{}))
	})
}

// refreshError maps credential errors to HTTP errors for the central handler.
func refreshError(err error) error {
	var cfgErr *spotify.ConfigurationError
	var authErr *spotify.AuthError
	switch {
	case errors.As(err, &cfgErr):
		return fiber.NewError(fiber.StatusInternalServerError, cfgErr.Error())
	case errors.As(err, &authErr):
		logging.Warn().Int("status", authErr.Status).Msg("httpapi: forced refresh rejected")
		return fiber.NewError(fiber.StatusUnauthorized, "refresh_failed")
	default:
		logging.Error().Err(err).Msg("httpapi: forced refresh failed")
		return fiber.NewError(fiber.StatusBadGateway, "refresh failed")
	}
}

// ErrorHandler renders errors as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
