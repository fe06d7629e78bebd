package scrape

import (
	"context"
	"net/http"
	"time"
)

// FetchRequest describes one page fetch.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse captures the fetched page.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// RawPage holds the unprocessed text pulled out of a bot page. Empty strings
// mean the element was missing.
type RawPage struct {
	RankText string
	Title    string
	Subtitle string
	// History holds the cell text of every history table row.
	History [][]string
}
