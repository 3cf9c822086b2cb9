package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/nowplaying-aggregator/internal/weather"
)

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name     string
	apiKey   string
	baseURL  string
	location weather.Location
	units    string
	client   *http.Client
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, loc weather.Location, units string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:     "openweathermap",
		apiKey:   apiKey,
		baseURL:  "https://api.openweathermap.org/data/2.5/weather",
		location: loc,
		units:    units,
		client:   client,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, lang string) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		lat, lon := p.location.Query()

		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("lat", lat)
		values.Set("lon", lon)
		if p.units != "" {
			values.Set("units", p.units)
		}
		if lang != "" {
			values.Set("lang", lang)
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, buildRequest)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("openweather: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description *string `json:"description"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("openweather: decode: %w", err)
	}

	reading := weather.Reading{Temperature: payload.Main.Temp}
	if len(payload.Weather) > 0 {
		reading.Description = payload.Weather[0].Description
	}
	return reading, nil
}
