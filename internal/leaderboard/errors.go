package leaderboard

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed reports a network, timeout, or malformed-page failure.
	// Stored data is never touched when a scrape returns it.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNoData is returned when a page lacks the containers a tracked bot
	// page always carries. It wraps ErrFetchFailed.
	ErrNoData = fmt.Errorf("%w: no data on page", ErrFetchFailed)
	// ErrNotConfigured is returned by every store operation when no store is
	// wired in.
	ErrNotConfigured = errors.New("store not configured")
	// ErrPublishFailed wraps a channel error for a single panel.
	ErrPublishFailed = errors.New("publish failed")
)
