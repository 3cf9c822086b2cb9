package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/nowplaying-aggregator/internal/weather"
)

// Default coordinates used when OPENWEATHER_LAT/LON are unset (Moscow).
const (
	defaultLat = 55.7558
	defaultLon = 37.6173
)

var validate = validator.New()

type SpotifyConfig struct {
	PollInterval time.Duration `validate:"gt=0"`
	ClientID     string
	ClientSecret string
	RefreshToken string
}

type WeatherConfig struct {
	APIKey   string
	Location weather.Location
	Units    string `validate:"omitempty,oneof=standard metric imperial"`
	Lang     string

	PollInterval time.Duration `validate:"gt=0"`
	RetryInitial time.Duration `validate:"gt=0"`
	RetrySteady  time.Duration `validate:"gt=0"`

	// LocationDefaulted is set when the coordinates fell back to the defaults.
	LocationDefaulted bool
}

type AppConfig struct {
	Spotify SpotifyConfig
	Weather WeatherConfig

	// StorageDir holds the cache files.
	StorageDir string `validate:"required"`

	Port        string        `validate:"required,numeric"`
	HTTPTimeout time.Duration `validate:"gt=0"`
	CORSOrigins []string

	// StatusLogInterval controls the diagnostics heartbeat.
	StatusLogInterval time.Duration `validate:"gt=0"`

	LogLevel  string
	LogFormat string `validate:"omitempty,oneof=json console"`
}

// Load reads configuration from environment with sensible defaults.
// Missing credentials are not an error; see Warnings.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	secs, err := getenvFloat("SPOTIFY_POLL_INTERVAL", 1.0)
	if err != nil {
		return nil, err
	}
	cfg.Spotify.PollInterval = time.Duration(secs * float64(time.Second))
	cfg.Spotify.ClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	cfg.Spotify.ClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	cfg.Spotify.RefreshToken = os.Getenv("SPOTIFY_REFRESH_TOKEN")

	cfg.Weather.APIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.Weather.Units = getenvDefault("OPENWEATHER_UNITS", "metric")
	cfg.Weather.Lang = getenvDefault("OPENWEATHER_LANG", "ru")

	latStr, lonStr := os.Getenv("OPENWEATHER_LAT"), os.Getenv("OPENWEATHER_LON")
	if latStr == "" || lonStr == "" {
		cfg.Weather.Location = weather.Location{Lat: defaultLat, Lon: defaultLon}
		cfg.Weather.LocationDefaulted = true
	} else {
		lat, err := parseCoordinate("OPENWEATHER_LAT", latStr, 90)
		if err != nil {
			return nil, err
		}
		lon, err := parseCoordinate("OPENWEATHER_LON", lonStr, 180)
		if err != nil {
			return nil, err
		}
		cfg.Weather.Location = weather.Location{Lat: lat, Lon: lon}
	}

	pollSecs, err := getenvInt("WEATHER_POLL_INTERVAL", 600)
	if err != nil {
		return nil, err
	}
	cfg.Weather.PollInterval = time.Duration(pollSecs) * time.Second

	if cfg.Weather.RetryInitial, err = getenvDuration("WEATHER_RETRY_INITIAL", "30s"); err != nil {
		return nil, err
	}
	if cfg.Weather.RetrySteady, err = getenvDuration("WEATHER_RETRY_STEADY", "120s"); err != nil {
		return nil, err
	}

	cfg.StorageDir = getenvDefault("STORAGE_DIR", "storage")
	cfg.Port = getenvDefault("PORT", "8080")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.StatusLogInterval, err = getenvDuration("STATUS_LOG_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	cfg.CORSOrigins = splitList(getenvDefault("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"))

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Warnings lists degraded features. None of them prevents startup.
func (c *AppConfig) Warnings() []string {
	var warnings []string
	if c.Weather.APIKey == "" {
		warnings = append(warnings, "OPENWEATHER_API_KEY is not set - weather features will not work")
	}
	if c.Weather.LocationDefaulted {
		warnings = append(warnings, "OPENWEATHER_LAT/LON not set - using default Moscow coordinates")
	}
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
		warnings = append(warnings, "Spotify credentials not set - music features will not work")
	}
	return warnings
}

func parseCoordinate(key, v string, limit float64) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if f < -limit || f > limit {
		return 0, fmt.Errorf("invalid %s: %v out of range", key, f)
	}
	return f, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
