package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/i474232898/nowplaying-aggregator/internal/status"
)

const defaultCurrentlyPlayingURL = "https://api.spotify.com/v1/me/player/currently-playing"

// FetchResult is the classified outcome of one currently-playing request.
// Snapshot is set only for a 200 response.
type FetchResult struct {
	ETag     string
	Snapshot *TrackSnapshot
	Status   int
}

// Fetcher performs conditional GETs against the currently-playing endpoint.
// Each call is exactly one round trip; retry policy belongs to the caller.
type Fetcher struct {
	client  *http.Client
	baseURL string
	tracker *status.Tracker
}

func NewFetcher(client *http.Client, tracker *status.Tracker) *Fetcher {
	return &Fetcher{
		client:  client,
		baseURL: defaultCurrentlyPlayingURL,
		tracker: tracker,
	}
}

// FetchOnce requests the current playback state. etag, when non-empty, is
// sent as If-None-Match. On anything but 200 the returned ETag is the one
// passed in.
func (f *Fetcher) FetchOnce(ctx context.Context, token, etag string) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL, nil)
	if err != nil {
		return FetchResult{ETag: etag}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.tracker.RecordFetch(0, false)
		return FetchResult{ETag: etag}, fmt.Errorf("%w: currently playing: %v", ErrTransientFetch, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
	}()

	f.tracker.RecordFetch(resp.StatusCode, fetchOK(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return FetchResult{ETag: etag, Status: resp.StatusCode}, nil
	}

	var payload currentlyPlaying
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return FetchResult{ETag: etag, Status: resp.StatusCode}, fmt.Errorf("%w: decode currently playing: %v", ErrTransientFetch, err)
	}

	snap := buildSnapshot(payload)
	return FetchResult{
		ETag:     resp.Header.Get("ETag"),
		Snapshot: &snap,
		Status:   resp.StatusCode,
	}, nil
}

func fetchOK(code int) bool {
	switch code {
	case http.StatusOK, http.StatusNoContent, http.StatusNotModified:
		return true
	default:
		return false
	}
}
