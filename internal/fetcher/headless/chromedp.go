// Package headless renders bot pages with headless Chrome for sites that
// build the ranking header client-side.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/robot-leaderboard/internal/scrape"
)

const (
	defaultNavigationTimeout = 25 * time.Second
	// DefaultWaitSelector is the element a bot page always renders.
	DefaultWaitSelector = "div.resource-header-title-container"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	WaitSelector      string
}

// Fetcher implements scrape.Fetcher using chromedp.
type Fetcher struct {
	cfg         Config
	slots       *semaphore.Weighted
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp. The browser is
// started lazily on the first Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = DefaultWaitSelector
	}
	var slots *semaphore.Weighted
	if cfg.MaxParallel > 0 {
		slots = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		slots:       slots,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates to the page, waits for the bot header, and returns the
// rendered DOM. A page that never renders the header times out.
func (f *Fetcher) Fetch(ctx context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	if err := f.acquire(ctx); err != nil {
		return scrape.FetchResponse{}, err
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.navTimeout())
	defer cancel()

	meta := &documentMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	var html, finalURL string
	actions := []chromedp.Action{
		f.userAgentAction(),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady(f.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return scrape.FetchResponse{}, fmt.Errorf("chromedp run: %w", err)
	}

	status, url := meta.snapshot()
	if status == 0 {
		status = http.StatusOK
	}
	if url == "" {
		url = finalURL
	}
	return scrape.FetchResponse{
		URL:          url,
		StatusCode:   status,
		Headers:      http.Header{},
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// acquire takes one browser tab slot. A nil semaphore means unbounded.
func (f *Fetcher) acquire(ctx context.Context) error {
	if f.slots == nil {
		return nil
	}
	if err := f.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("headless slot wait canceled: %w", err)
	}
	return nil
}

func (f *Fetcher) release() {
	if f.slots != nil {
		f.slots.Release(1)
	}
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// documentMeta records the status of the main document response.
type documentMeta struct {
	mu     sync.Mutex
	status int
	url    string
}

func (m *documentMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != 0 {
		return
	}
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
}

func (m *documentMeta) snapshot() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.url
}
