package leaderboard

import (
	"context"
	"time"
)

// Store is the table-like collection of tracked entries. Implementations only
// promise single-row atomicity.
type Store interface {
	FindByURL(ctx context.Context, sourceURL string) (Entry, bool, error)
	Insert(ctx context.Context, sourceURL string, fields Fields) (Entry, error)
	Update(ctx context.Context, id string, fields Fields) (Entry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Entry, error)
}

// Scraper fetches a bot page and normalizes it. It returns an error wrapping
// ErrFetchFailed instead of partially filled Fields.
type Scraper interface {
	Scrape(ctx context.Context, sourceURL string) (Fields, error)
}

// Channel is the messaging destination the leaderboard is published to.
// Purge may only be able to remove recent messages.
type Channel interface {
	Purge(ctx context.Context) error
	Send(ctx context.Context, panel Panel) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reports wall-clock time in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// IDGenerator produces entry IDs for stores that do not assign their own.
type IDGenerator interface {
	NewID() (string, error)
}
