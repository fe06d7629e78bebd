package promote

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/robot-leaderboard/internal/scrape"
)

// Detector decides whether a plain response needs a headless re-fetch.
type Detector interface {
	ShouldPromote(resp scrape.FetchResponse) bool
}

// Fetcher tries the primary fetcher first and falls back to the headless one
// when the detector flags the response.
type Fetcher struct {
	primary  scrape.Fetcher
	headless scrape.Fetcher
	detector Detector
	logger   *zap.Logger
}

// New creates a promoting Fetcher. detector defaults to NewHeuristic(0).
func New(primary, headless scrape.Fetcher, detector Detector, logger *zap.Logger) (*Fetcher, error) {
	if primary == nil || headless == nil {
		return nil, errors.New("promote: primary and headless fetchers are required")
	}
	if detector == nil {
		detector = NewHeuristic(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		primary:  primary,
		headless: headless,
		detector: detector,
		logger:   logger,
	}, nil
}

// Fetch implements scrape.Fetcher. When the headless retry fails the primary
// response is returned so the parser reports the missing data.
func (f *Fetcher) Fetch(ctx context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	resp, err := f.primary.Fetch(ctx, request)
	if err != nil || !f.detector.ShouldPromote(resp) {
		return resp, err //nolint:wrapcheck // passthrough of the primary fetcher
	}

	f.logger.Debug("promoting fetch to headless", zap.String("url", request.URL))
	rendered, err := f.headless.Fetch(ctx, request)
	if err != nil {
		f.logger.Warn("headless promotion failed", zap.String("url", request.URL), zap.Error(err))
		return resp, nil
	}
	rendered.UsedHeadless = true
	return rendered, nil
}
