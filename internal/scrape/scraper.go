package scrape

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
	"github.com/JakeFAU/robot-leaderboard/internal/metrics"
)

// Scraper implements leaderboard.Scraper on top of a Fetcher.
type Scraper struct {
	fetcher Fetcher
	limiter Limiter
	logger  *zap.Logger
}

// New creates a Scraper. limiter may be nil.
func New(fetcher Fetcher, limiter Limiter, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		fetcher: fetcher,
		limiter: limiter,
		logger:  logger,
	}
}

// Scrape fetches and normalizes a bot page. Every failure wraps
// leaderboard.ErrFetchFailed so callers never mistake it for zeroed data.
func (s *Scraper) Scrape(ctx context.Context, sourceURL string) (leaderboard.Fields, error) {
	fields, err := s.scrape(ctx, sourceURL)
	if err != nil {
		metrics.ObserveScrape(sourceURL, "failed")
		s.logger.Warn("scrape failed", zap.String("url", sourceURL), zap.Error(err))
		return leaderboard.Fields{}, err
	}
	metrics.ObserveScrape(sourceURL, "succeeded")
	s.logger.Debug("scrape succeeded",
		zap.String("url", sourceURL),
		zap.String("name", fields.DisplayName),
		zap.Int("rank", fields.Rank),
		zap.Float64("total_score", fields.TotalScore),
	)
	return fields, nil
}

func (s *Scraper) scrape(ctx context.Context, sourceURL string) (leaderboard.Fields, error) {
	if s.fetcher == nil {
		return leaderboard.Fields{}, fmt.Errorf("no fetcher configured: %w", leaderboard.ErrFetchFailed)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, sourceURL); err != nil {
			return leaderboard.Fields{}, fmt.Errorf("%w: %w", leaderboard.ErrFetchFailed, err)
		}
	}
	resp, err := s.fetcher.Fetch(ctx, FetchRequest{URL: sourceURL})
	if err != nil {
		return leaderboard.Fields{}, fmt.Errorf("fetch %s: %w: %w", sourceURL, leaderboard.ErrFetchFailed, err)
	}
	if resp.StatusCode != 0 && (resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices) {
		return leaderboard.Fields{}, fmt.Errorf("fetch %s: status %d: %w", sourceURL, resp.StatusCode, leaderboard.ErrFetchFailed)
	}
	page, err := ParsePage(resp.Body)
	if err != nil {
		return leaderboard.Fields{}, fmt.Errorf("parse %s: %w", sourceURL, err)
	}
	return Normalize(page), nil
}
