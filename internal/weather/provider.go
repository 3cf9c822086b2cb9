package weather

import "context"

// Reading is a single provider response. Description and Temperature are nil
// when the payload omits them.
type Reading struct {
	Description *string
	Temperature *float64
}

// Provider abstracts the current-weather endpoint.
type Provider interface {
	Name() string
	// Fetch returns the current weather. An empty lang omits the language
	// parameter so the provider answers in its default language.
	Fetch(ctx context.Context, lang string) (Reading, error)
}

// SnapshotWriter persists a document under a key.
type SnapshotWriter interface {
	Write(key string, value any) error
}
