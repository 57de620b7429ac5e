package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher performs a single HTTP GET. A non-nil error means no response was
// received; any HTTP status (including 4xx/5xx) is returned as a response.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Limiter gates outbound requests, typically per domain.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// LogStore persists scrape log records for auditing.
type LogStore interface {
	StoreLogs(ctx context.Context, runID string, logs []LogRecord) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
