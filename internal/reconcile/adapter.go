package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

// DefaultRefreshConcurrency bounds RefreshAll when Config leaves it unset.
const DefaultRefreshConcurrency = 4

// Config tunes the adapter.
type Config struct {
	// RefreshConcurrency caps parallel scrapes during RefreshAll.
	RefreshConcurrency int
}

// Adapter reconciles scraped records with the store. A nil store makes every
// operation fail with leaderboard.ErrNotConfigured.
type Adapter struct {
	store       leaderboard.Store
	scraper     leaderboard.Scraper
	logger      *zap.Logger
	concurrency int
	locks       *keyLock
}

// Result reports the outcome of an upsert.
type Result struct {
	Entry   leaderboard.Entry
	Created bool
}

// RefreshSummary counts the outcome of RefreshAll.
type RefreshSummary struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// New constructs an Adapter. scraper may be nil when only Upsert, Remove and
// ListAll are used.
func New(store leaderboard.Store, scraper leaderboard.Scraper, cfg Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = DefaultRefreshConcurrency
	}
	return &Adapter{
		store:       store,
		scraper:     scraper,
		logger:      logger.Named("reconcile"),
		concurrency: cfg.RefreshConcurrency,
		locks:       newKeyLock(),
	}
}

// Configured reports whether a store is wired in.
func (a *Adapter) Configured() bool {
	return a != nil && a.store != nil
}

// Upsert overwrites the entry tracked under sourceURL or creates it. Calls
// for the same URL are serialized so two first-time adds cannot both insert.
func (a *Adapter) Upsert(ctx context.Context, sourceURL string, fields leaderboard.Fields) (Result, error) {
	if !a.Configured() {
		return Result{}, leaderboard.ErrNotConfigured
	}
	unlock := a.locks.Lock(sourceURL)
	defer unlock()

	existing, found, err := a.store.FindByURL(ctx, sourceURL)
	if err != nil {
		return Result{}, fmt.Errorf("lookup %s: %w", sourceURL, err)
	}
	if found {
		entry, err := a.store.Update(ctx, existing.ID, fields)
		if err != nil {
			return Result{}, fmt.Errorf("update %s: %w", sourceURL, err)
		}
		return Result{Entry: entry}, nil
	}
	entry, err := a.store.Insert(ctx, sourceURL, fields)
	if err != nil {
		return Result{}, fmt.Errorf("insert %s: %w", sourceURL, err)
	}
	return Result{Entry: entry, Created: true}, nil
}

// Remove deletes the entry tracked under sourceURL. An untracked URL yields
// (false, nil) and leaves the store unchanged.
func (a *Adapter) Remove(ctx context.Context, sourceURL string) (bool, error) {
	if !a.Configured() {
		return false, leaderboard.ErrNotConfigured
	}
	unlock := a.locks.Lock(sourceURL)
	defer unlock()

	existing, found, err := a.store.FindByURL(ctx, sourceURL)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", sourceURL, err)
	}
	if !found {
		return false, nil
	}
	if err := a.store.Delete(ctx, existing.ID); err != nil {
		return false, fmt.Errorf("delete %s: %w", sourceURL, err)
	}
	a.logger.Info("entry removed", zap.String("url", sourceURL), zap.String("id", existing.ID))
	return true, nil
}

// ListAll returns every tracked entry. No entries is an empty slice.
func (a *Adapter) ListAll(ctx context.Context) ([]leaderboard.Entry, error) {
	if !a.Configured() {
		return nil, leaderboard.ErrNotConfigured
	}
	entries, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	return entries, nil
}

// AddOrUpdate scrapes sourceURL and upserts the result. A failed scrape
// returns an error wrapping leaderboard.ErrFetchFailed and writes nothing.
func (a *Adapter) AddOrUpdate(ctx context.Context, sourceURL string) (Result, error) {
	if !a.Configured() {
		return Result{}, leaderboard.ErrNotConfigured
	}
	if a.scraper == nil {
		return Result{}, fmt.Errorf("no scraper configured: %w", leaderboard.ErrFetchFailed)
	}
	fields, err := a.scraper.Scrape(ctx, sourceURL)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // scraper errors already carry the url
	}
	res, err := a.Upsert(ctx, sourceURL, fields)
	if err != nil {
		return Result{}, err
	}
	a.logger.Info("entry reconciled",
		zap.String("url", sourceURL),
		zap.String("id", res.Entry.ID),
		zap.Bool("created", res.Created),
	)
	return res, nil
}

// RefreshAll re-scrapes every tracked entry. Entries whose scrape fails keep
// their stored values and are counted in Failed.
func (a *Adapter) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	entries, err := a.ListAll(ctx)
	if err != nil {
		return RefreshSummary{}, err
	}
	if a.scraper == nil {
		return RefreshSummary{}, fmt.Errorf("no scraper configured: %w", leaderboard.ErrFetchFailed)
	}

	var updated, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, entry := range entries {
		g.Go(func() error {
			if err := a.refreshOne(gctx, entry); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				a.logger.Warn("refresh entry failed", zap.String("url", entry.SourceURL), zap.Error(err))
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	waitErr := g.Wait()
	summary := RefreshSummary{
		Total:   len(entries),
		Updated: int(updated.Load()),
		Failed:  int(failed.Load()),
	}
	if waitErr != nil {
		return summary, fmt.Errorf("refresh all: %w", waitErr)
	}
	a.logger.Info("refresh all complete",
		zap.Int("total", summary.Total),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

var errEntryGone = errors.New("entry removed during refresh")

func (a *Adapter) refreshOne(ctx context.Context, entry leaderboard.Entry) error {
	fields, err := a.scraper.Scrape(ctx, entry.SourceURL)
	if err != nil {
		return err //nolint:wrapcheck // logged by the caller with the url
	}
	unlock := a.locks.Lock(entry.SourceURL)
	defer unlock()

	current, found, err := a.store.FindByURL(ctx, entry.SourceURL)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", entry.SourceURL, err)
	}
	if !found {
		return errEntryGone
	}
	if _, err := a.store.Update(ctx, current.ID, fields); err != nil {
		return fmt.Errorf("update %s: %w", entry.SourceURL, err)
	}
	return nil
}
