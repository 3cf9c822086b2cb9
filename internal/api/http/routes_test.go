package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/nowplaying-aggregator/internal/spotify"
	"github.com/i474232898/nowplaying-aggregator/internal/status"
	"github.com/i474232898/nowplaying-aggregator/internal/store"
	"github.com/i474232898/nowplaying-aggregator/internal/weather"
)

type fakeRefresher struct {
	err   error
	calls int
}

func (f *fakeRefresher) RefreshAndStore(context.Context) (spotify.AccessToken, error) {
	f.calls++
	if f.err != nil {
		return spotify.AccessToken{}, f.err
	}
	return spotify.AccessToken{Token: "new"}, nil
}

func (f *fakeRefresher) HasTokenFile() bool { return f.calls > 0 && f.err == nil }

func setup(t *testing.T, tokens TokenRefresher) (*fiber.App, *store.FileStore, *status.Tracker) {
	t.Helper()
	cache, err := store.NewFileStore(filepath.Join(t.TempDir(), "storage"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tracker := status.New()
	app := NewApp([]string{"http://localhost:3000"})
	RegisterRoutes(app, Deps{Cache: cache, Tracker: tracker, Tokens: tokens})
	return app, cache, tracker
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("GET %s: decode %q: %v", path, raw, err)
	}
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	app, _, _ := setup(t, &fakeRefresher{})
	code, body := get(t, app, "/health")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", code, body)
	}
}

func TestSpotifyServesCacheOrDefault(t *testing.T) {
	app, cache, _ := setup(t, &fakeRefresher{})

	code, body := get(t, app, "/spotify")
	if code != http.StatusOK || body["is_active"] != false || body["track"] != nil {
		t.Fatalf("unexpected default response %d %v", code, body)
	}

	snap := spotify.TrackSnapshot{IsActive: true, Track: &spotify.TrackItem{ID: "t1", Title: "Song", ImageURL: "img"}}
	if err := cache.Write(spotify.PlaybackKey, snap); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, body = get(t, app, "/spotify")
	track, ok := body["track"].(map[string]any)
	if !ok || body["is_active"] != true || track["title"] != "Song" || track["image_url"] != "img" {
		t.Fatalf("unexpected cached response %v", body)
	}
}

func TestSpotifyCorruptCacheFallsBack(t *testing.T) {
	app, cache, _ := setup(t, &fakeRefresher{})
	// Active without a track violates the snapshot shape.
	if err := cache.Write(spotify.PlaybackKey, map[string]any{"is_active": true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, body := get(t, app, "/spotify")
	if body["is_active"] != false {
		t.Fatalf("expected default for invalid cache entry, got %v", body)
	}
}

func TestWeatherServesCacheOrDefault(t *testing.T) {
	app, cache, _ := setup(t, &fakeRefresher{})

	_, body := get(t, app, "/weather")
	for _, key := range []string{"description_localized", "description_en", "temperature"} {
		if v, ok := body[key]; !ok || v != nil {
			t.Fatalf("expected null %s, got %v", key, body)
		}
	}

	desc, temp := "clear sky", 20.1
	if err := cache.Write(weather.CacheKey, weather.Snapshot{DescriptionLocalized: &desc, Temperature: &temp}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, body = get(t, app, "/weather")
	if body["description_localized"] != "clear sky" || body["temperature"] != 20.1 || body["description_en"] != nil {
		t.Fatalf("unexpected cached weather %v", body)
	}
}

func TestRefreshSuccess(t *testing.T) {
	refresher := &fakeRefresher{}
	app, _, _ := setup(t, refresher)

	code, body := get(t, app, "/spotify/refresh")
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("unexpected response %d %v", code, body)
	}
	if s, _ := body["refreshed_at"].(string); s == "" {
		t.Fatalf("missing refreshed_at: %v", body)
	}
	if s, _ := body["request_id"].(string); len(s) != 36 {
		t.Fatalf("expected uuid request id, got %v", body["request_id"])
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.calls)
	}
}

func TestRefreshWithoutCredentials(t *testing.T) {
	var upstreamCalls int
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		upstreamCalls++
	}))
	defer upstream.Close()

	cache, err := store.NewFileStore(filepath.Join(t.TempDir(), "storage"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tracker := status.New()
	manager := spotify.NewCredentialManager(upstream.Client(), spotify.ClientCredentials{}, cache, tracker)

	app := NewApp(nil)
	RegisterRoutes(app, Deps{Cache: cache, Tracker: tracker, Tokens: manager})

	code, body := get(t, app, "/spotify/refresh")
	if code != http.StatusInternalServerError || body["error"] != true {
		t.Fatalf("unexpected response %d %v", code, body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "SPOTIFY_CLIENT_ID") {
		t.Fatalf("expected missing credential names, got %q", msg)
	}
	if upstreamCalls != 0 {
		t.Fatalf("no upstream call expected, got %d", upstreamCalls)
	}

	_, debug := get(t, app, "/spotify/debug")
	token := debug["token"].(map[string]any)
	if token["last_refresh_status"] != float64(0) || token["last_refresh_ok"] != false || token["has_token_file"] != false {
		t.Fatalf("unexpected debug token state %v", token)
	}
}

func TestRefreshRejected(t *testing.T) {
	app, _, _ := setup(t, &fakeRefresher{err: &spotify.AuthError{Status: 400, Body: "invalid_grant"}})
	code, _ := get(t, app, "/spotify/refresh")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}

	app, _, _ = setup(t, &fakeRefresher{err: errors.New("dial tcp: timeout")})
	code, _ = get(t, app, "/spotify/refresh")
	if code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", code)
	}
}

func TestDebugReflectsTracker(t *testing.T) {
	app, _, tracker := setup(t, &fakeRefresher{})

	_, body := get(t, app, "/spotify/debug")
	fetch := body["fetch"].(map[string]any)
	if fetch["last_status"] != nil || fetch["last_when"] != nil {
		t.Fatalf("expected empty fetch state, got %v", fetch)
	}

	tracker.RecordFetch(http.StatusNotModified, true)
	_, body = get(t, app, "/spotify/debug")
	fetch = body["fetch"].(map[string]any)
	if fetch["last_status"] != float64(304) || fetch["last_ok"] != true || fetch["last_when"] == nil {
		t.Fatalf("unexpected fetch state %v", fetch)
	}
}
