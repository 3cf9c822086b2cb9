package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/i474232898/nowplaying-aggregator/internal/common"
	"github.com/i474232898/nowplaying-aggregator/internal/logging"
)

const (
	rateLimitFloor = 2 * time.Second
	maxBackoff     = 8 * time.Second
	backoffFactor  = 1.5
)

// TokenSource hands out access tokens to the poller.
type TokenSource interface {
	EnsureInitialLoad(ctx context.Context) (AccessToken, error)
	RefreshAndStore(ctx context.Context) (AccessToken, error)
}

// PlaybackFetcher performs one conditional currently-playing request.
type PlaybackFetcher interface {
	FetchOnce(ctx context.Context, token, etag string) (FetchResult, error)
}

// SnapshotWriter persists a document under a key.
type SnapshotWriter interface {
	Write(key string, value any) error
}

// Poller keeps the cached playback snapshot current. The token, ETag and
// backoff are owned by the poller and only touched from Step.
type Poller struct {
	tokens   TokenSource
	fetcher  PlaybackFetcher
	cache    SnapshotWriter
	interval time.Duration

	token   string
	etag    string
	backoff time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewPoller(tokens TokenSource, fetcher PlaybackFetcher, cache SnapshotWriter, interval time.Duration) *Poller {
	return &Poller{
		tokens:   tokens,
		fetcher:  fetcher,
		cache:    cache,
		interval: interval,
		backoff:  interval,
		sleep:    common.Sleep,
	}
}

// String names the poller in supervisor logs.
func (p *Poller) String() string {
	return "spotify-poller"
}

// Serve runs until ctx is canceled. It implements suture.Service.
func (p *Poller) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", p.interval).Msg("spotify: poller started")
	for {
		next := p.Step(ctx)
		if err := p.sleep(ctx, next); err != nil {
			logging.Info().Msg("spotify: poller stopped")
			return err
		}
	}
}

// Step runs one iteration and returns the delay before the next one.
func (p *Poller) Step(ctx context.Context) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			next = p.fail(fmt.Errorf("panic: %v", r), 0)
		}
	}()

	if p.token == "" {
		tok, err := p.tokens.EnsureInitialLoad(ctx)
		if err != nil {
			return p.fail(err, 0)
		}
		p.token = tok.Token
	}

	res, err := p.fetcher.FetchOnce(ctx, p.token, p.etag)
	if err == nil && res.Status == http.StatusUnauthorized {
		// One refresh and one retry per iteration.
		p.etag = ""
		tok, rerr := p.tokens.RefreshAndStore(ctx)
		if rerr != nil {
			return p.fail(rerr, res.Status)
		}
		p.token = tok.Token
		res, err = p.fetcher.FetchOnce(ctx, p.token, p.etag)
	}
	if err != nil {
		return p.fail(err, res.Status)
	}

	switch res.Status {
	case http.StatusTooManyRequests:
		return common.MaxDuration(rateLimitFloor, p.interval)

	case http.StatusNoContent:
		if err := p.cache.Write(PlaybackKey, InactiveSnapshot()); err != nil {
			return p.fail(err, res.Status)
		}
		p.etag = ""
		return p.interval

	case http.StatusNotModified:
		return p.interval

	case http.StatusOK:
		if res.Snapshot == nil {
			break
		}
		if err := p.cache.Write(PlaybackKey, *res.Snapshot); err != nil {
			return p.fail(err, res.Status)
		}
		p.etag = res.ETag
		p.backoff = p.interval
		return p.interval

	case http.StatusForbidden:
		p.etag = ""
	}

	return p.fail(errors.New("unexpected status"), res.Status)
}

// fail grows the backoff and returns it as the next delay.
func (p *Poller) fail(err error, httpStatus int) time.Duration {
	grown := time.Duration(float64(p.backoff) * backoffFactor)
	p.backoff = common.MinDuration(maxBackoff, common.MaxDuration(grown, p.interval))

	logging.Warn().
		Err(err).
		Int("status", httpStatus).
		Dur("retry_in", p.backoff).
		Msg("spotify: poll failed")
	return p.backoff
}

// Backoff returns the current adaptive backoff.
func (p *Poller) Backoff() time.Duration {
	return p.backoff
}
