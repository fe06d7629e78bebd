package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
	"github.com/JakeFAU/robot-leaderboard/internal/storage/memory"
)

func newAdapter(t *testing.T, scraper leaderboard.Scraper) (*Adapter, *memory.EntryStore) {
	t.Helper()
	store := memory.NewEntryStore(&sequenceIDs{})
	return New(store, scraper, Config{RefreshConcurrency: 2}, nil), store
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	a, _ := newAdapter(t, nil)
	ctx := context.Background()
	url := "https://example.com/bots/1"

	first, err := a.Upsert(ctx, url, leaderboard.Fields{DisplayName: "Bee", WeightClass: "Fairyweight", Rank: 3, TotalScore: 1.5})
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := a.Upsert(ctx, url, leaderboard.Fields{DisplayName: "Bee", WeightClass: "Fairyweight", Rank: 2, TotalScore: 0.5})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Entry.ID, second.Entry.ID)

	entries, err := a.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	// overwritten, never accumulated
	require.Equal(t, 0.5, entries[0].TotalScore)
	require.Equal(t, 2, entries[0].Rank)
}

func TestUpsertThenListRoundTrip(t *testing.T) {
	t.Parallel()

	a, _ := newAdapter(t, nil)
	ctx := context.Background()
	fields := leaderboard.Fields{DisplayName: "Saw", WeightClass: "1lb - Plastic Antweight", Rank: 7, TotalScore: 3.75}

	res, err := a.Upsert(ctx, "https://example.com/bots/saw", fields)
	require.NoError(t, err)

	entries, err := a.ListAll(ctx)
	require.NoError(t, err)
	require.Contains(t, entries, res.Entry)
	require.Equal(t, fields, entries[0].Fields())
}

func TestConcurrentFirstUpsertsInsertOnce(t *testing.T) {
	t.Parallel()

	a, _ := newAdapter(t, nil)
	ctx := context.Background()
	url := "https://example.com/bots/race"

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.Upsert(ctx, url, leaderboard.Fields{DisplayName: "Racer", Rank: i + 1})
			if err != nil {
				t.Errorf("Upsert() error = %v", err)
				return
			}
			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	entries, err := a.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, created)
	require.Zero(t, a.locks.size())
}

func TestRemove(t *testing.T) {
	t.Parallel()

	a, _ := newAdapter(t, nil)
	ctx := context.Background()
	url := "https://example.com/bots/1"
	_, err := a.Upsert(ctx, url, leaderboard.DefaultFields())
	require.NoError(t, err)

	removed, err := a.Remove(ctx, "https://example.com/untracked")
	require.NoError(t, err)
	require.False(t, removed)
	entries, err := a.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	removed, err = a.Remove(ctx, url)
	require.NoError(t, err)
	require.True(t, removed)
	entries, err = a.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.NotNil(t, entries)
}

func TestNotConfigured(t *testing.T) {
	t.Parallel()

	a := New(nil, &stubScraper{}, Config{}, nil)
	ctx := context.Background()

	_, err := a.Upsert(ctx, "u", leaderboard.DefaultFields())
	require.ErrorIs(t, err, leaderboard.ErrNotConfigured)
	_, err = a.Remove(ctx, "u")
	require.ErrorIs(t, err, leaderboard.ErrNotConfigured)
	_, err = a.ListAll(ctx)
	require.ErrorIs(t, err, leaderboard.ErrNotConfigured)
	_, err = a.AddOrUpdate(ctx, "u")
	require.ErrorIs(t, err, leaderboard.ErrNotConfigured)
	_, err = a.RefreshAll(ctx)
	require.ErrorIs(t, err, leaderboard.ErrNotConfigured)
	require.False(t, a.Configured())
}

func TestAddOrUpdate(t *testing.T) {
	t.Parallel()

	good := "https://example.com/bots/good"
	bad := "https://example.com/bots/bad"
	scraper := &stubScraper{results: map[string]leaderboard.Fields{
		good: {DisplayName: "Good", WeightClass: "Antweight", Rank: 4, TotalScore: 9},
	}}
	a, store := newAdapter(t, scraper)
	ctx := context.Background()

	res, err := a.AddOrUpdate(ctx, good)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, "Good", res.Entry.DisplayName)

	_, err = a.AddOrUpdate(ctx, bad)
	require.ErrorIs(t, err, leaderboard.ErrFetchFailed)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRefreshAllLeavesFailedEntriesUntouched(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{results: map[string]leaderboard.Fields{}}
	a, _ := newAdapter(t, scraper)
	ctx := context.Background()

	urls := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	for i, url := range urls {
		_, err := a.Upsert(ctx, url, leaderboard.Fields{DisplayName: url, WeightClass: "Antweight", Rank: i + 1, TotalScore: 1})
		require.NoError(t, err)
	}
	scraper.set(urls[0], leaderboard.Fields{DisplayName: "A", WeightClass: "Antweight", Rank: 1, TotalScore: 20})
	scraper.set(urls[2], leaderboard.Fields{DisplayName: "C", WeightClass: "Antweight", Rank: 3, TotalScore: 30})

	summary, err := a.RefreshAll(ctx)
	require.NoError(t, err)
	require.Equal(t, RefreshSummary{Total: 3, Updated: 2, Failed: 1}, summary)

	entries, err := a.ListAll(ctx)
	require.NoError(t, err)
	byURL := map[string]leaderboard.Entry{}
	for _, e := range entries {
		byURL[e.SourceURL] = e
	}
	require.Equal(t, 20.0, byURL[urls[0]].TotalScore)
	require.Equal(t, 1.0, byURL[urls[1]].TotalScore)
	require.Equal(t, urls[1], byURL[urls[1]].DisplayName)
	require.Equal(t, 30.0, byURL[urls[2]].TotalScore)
}

func TestRefreshAllCanceled(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{results: map[string]leaderboard.Fields{}}
	a, _ := newAdapter(t, scraper)
	_, err := a.Upsert(context.Background(), "https://example.com/a", leaderboard.DefaultFields())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.RefreshAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type stubScraper struct {
	mu      sync.Mutex
	results map[string]leaderboard.Fields
}

func (s *stubScraper) set(url string, f leaderboard.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[url] = f
}

func (s *stubScraper) Scrape(ctx context.Context, url string) (leaderboard.Fields, error) {
	if err := ctx.Err(); err != nil {
		return leaderboard.Fields{}, fmt.Errorf("%w: %w", leaderboard.ErrFetchFailed, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.results[url]
	if !ok {
		return leaderboard.Fields{}, fmt.Errorf("fetch %s: %w", url, errors.Join(leaderboard.ErrFetchFailed, leaderboard.ErrNoData))
	}
	return f, nil
}

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("entry-%d", s.n), nil
}
