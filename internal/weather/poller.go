package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/nowplaying-aggregator/internal/common"
	"github.com/i474232898/nowplaying-aggregator/internal/logging"
)

// PollerConfig controls the weather poll cadence.
type PollerConfig struct {
	// Lang is sent with the primary request; the follow-up omits it.
	Lang string

	// Interval is the delay after a successful poll.
	Interval time.Duration

	// RetryInitial is the delay after a failure while no poll has succeeded yet.
	RetryInitial time.Duration

	// RetrySteady is the delay after a failure once a baseline exists.
	RetrySteady time.Duration
}

// Poller keeps the cached weather snapshot current.
type Poller struct {
	provider Provider
	cache    SnapshotWriter
	cfg      PollerConfig

	succeeded bool

	// followUp guards the best-effort language-neutral request. While open
	// the request is skipped and DescriptionEN stays nil.
	followUp *gobreaker.CircuitBreaker

	sleep func(ctx context.Context, d time.Duration) error
}

func NewPoller(provider Provider, cache SnapshotWriter, cfg PollerConfig) *Poller {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather-follow-up",
		MaxRequests: 1,
		Timeout:     10 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("weather: circuit breaker state change")
		},
	})

	return &Poller{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		followUp: cb,
		sleep:    common.Sleep,
	}
}

// String names the poller in supervisor logs.
func (p *Poller) String() string {
	return "weather-poller"
}

// Serve runs until ctx is canceled. It implements suture.Service.
func (p *Poller) Serve(ctx context.Context) error {
	logging.Info().Str("provider", p.provider.Name()).Dur("interval", p.cfg.Interval).Msg("weather: poller started")
	for {
		next := p.Step(ctx)
		if err := p.sleep(ctx, next); err != nil {
			logging.Info().Msg("weather: poller stopped")
			return err
		}
	}
}

// Step runs one iteration and returns the delay before the next one.
func (p *Poller) Step(ctx context.Context) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			next = p.retryDelay(fmt.Errorf("panic: %v", r))
		}
	}()

	primary, err := p.provider.Fetch(ctx, p.cfg.Lang)
	if err != nil {
		return p.retryDelay(err)
	}

	snap := Snapshot{
		DescriptionLocalized: primary.Description,
		DescriptionEN:        p.fetchNeutral(ctx),
		Temperature:          primary.Temperature,
	}
	if err := p.cache.Write(CacheKey, snap); err != nil {
		return p.retryDelay(err)
	}

	p.succeeded = true
	return p.cfg.Interval
}

// fetchNeutral returns the language-neutral description, or nil on any failure.
func (p *Poller) fetchNeutral(ctx context.Context) *string {
	res, err := p.followUp.Execute(func() (interface{}, error) {
		r, err := p.provider.Fetch(ctx, "")
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		logging.Debug().Err(err).Msg("weather: language-neutral fetch failed")
		return nil
	}
	return res.(Reading).Description
}

func (p *Poller) retryDelay(err error) time.Duration {
	d := p.cfg.RetrySteady
	if !p.succeeded {
		d = p.cfg.RetryInitial
	}
	logging.Warn().Err(err).Bool("has_baseline", p.succeeded).Dur("retry_in", d).Msg("weather: poll failed")
	return d
}
