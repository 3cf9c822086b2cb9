// Package status keeps the in-memory outcome of the most recent token refresh
// and playback fetch. Nothing here is persisted; it resets with the process.
package status

import (
	"sync"
	"time"
)

// Outcome is the last recorded result of one kind of upstream call.
// All fields are nil until the first call is recorded.
type Outcome struct {
	HTTPStatus *int       `json:"last_http_status"`
	OK         *bool      `json:"last_ok"`
	At         *time.Time `json:"last_at"`
}

// Snapshot is a point-in-time copy of the tracker.
type Snapshot struct {
	Refresh Outcome `json:"refresh"`
	Fetch   Outcome `json:"fetch"`
}

// Tracker records outcomes. It is safe for concurrent use; readers only
// ever get copies.
type Tracker struct {
	mu      sync.RWMutex
	refresh Outcome
	fetch   Outcome
	now     func() time.Time
}

func New() *Tracker {
	return &Tracker{now: time.Now}
}

func (t *Tracker) outcome(httpStatus int, ok bool) Outcome {
	at := t.now().UTC()
	return Outcome{HTTPStatus: &httpStatus, OK: &ok, At: &at}
}

// RecordRefresh stores the result of a token exchange. Status 0 means no
// HTTP response was obtained.
func (t *Tracker) RecordRefresh(httpStatus int, ok bool) {
	o := t.outcome(httpStatus, ok)
	t.mu.Lock()
	t.refresh = o
	t.mu.Unlock()
}

// RecordFetch stores the result of a playback fetch.
func (t *Tracker) RecordFetch(httpStatus int, ok bool) {
	o := t.outcome(httpStatus, ok)
	t.mu.Lock()
	t.fetch = o
	t.mu.Unlock()
}

// Snapshot returns the current state. Recorded outcomes are never mutated
// in place, so the returned pointers are safe to share.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{Refresh: t.refresh, Fetch: t.fetch}
}
