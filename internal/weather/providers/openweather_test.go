package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/i474232898/nowplaying-aggregator/internal/weather"
)

func newTestProvider(t *testing.T, apiKey string, handler http.HandlerFunc) *OpenWeatherProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewOpenWeatherProvider(srv.Client(), apiKey, weather.Location{Lat: 55.7558, Lon: 37.6173}, "metric")
	p.baseURL = srv.URL
	return p
}

func TestOpenWeatherFetchQueryParams(t *testing.T) {
	var seen []string
	p := newTestProvider(t, "key", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("appid") != "key" || q.Get("lat") != "55.7558" || q.Get("lon") != "37.6173" || q.Get("units") != "metric" {
			t.Errorf("unexpected query %v", q)
		}
		_, hasLang := q["lang"]
		if hasLang {
			seen = append(seen, q.Get("lang"))
		} else {
			seen = append(seen, "<none>")
		}
		_, _ = w.Write([]byte(`{"weather":[{"description":"clear sky"}],"main":{"temp":20.1}}`))
	})

	r, err := p.Fetch(context.Background(), "ru")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if r.Description == nil || *r.Description != "clear sky" || r.Temperature == nil || *r.Temperature != 20.1 {
		t.Fatalf("unexpected reading %+v", r)
	}

	if _, err := p.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch without lang: %v", err)
	}
	if len(seen) != 2 || seen[0] != "ru" || seen[1] != "<none>" {
		t.Fatalf("unexpected lang params %v", seen)
	}
}

func TestOpenWeatherFetchMissingFields(t *testing.T) {
	p := newTestProvider(t, "key", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"weather":[],"main":{}}`))
	})
	r, err := p.Fetch(context.Background(), "en")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if r.Description != nil || r.Temperature != nil {
		t.Fatalf("expected empty reading, got %+v", r)
	}
}

func TestOpenWeatherFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"unauthorized", http.StatusUnauthorized, errUnexpected},
		{"rate limited", http.StatusTooManyRequests, errRateLimited},
		{"server error", http.StatusBadGateway, errServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, "key", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			})
			if _, err := p.Fetch(context.Background(), "en"); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOpenWeatherMissingAPIKey(t *testing.T) {
	called := false
	p := newTestProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	if _, err := p.Fetch(context.Background(), "en"); !errors.Is(err, errMissingAPIKey) {
		t.Fatalf("expected errMissingAPIKey, got %v", err)
	}
	if called {
		t.Fatalf("no request expected without an api key")
	}
}
