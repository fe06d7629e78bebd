// Package collyfetcher fetches bot pages over plain HTTP with gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/robot-leaderboard/internal/scrape"
)

const (
	// DefaultTimeout bounds a single page fetch when Config.Timeout is zero.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodyBytes caps a bot page body when Config.MaxBodyBytes is zero.
	DefaultMaxBodyBytes = 4 << 20
)

// ErrNotHTML is returned when the server answers with a non-HTML document.
var ErrNotHTML = errors.New("response is not html")

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// AllowedDomains restricts fetches to these hosts. Empty allows any host.
	AllowedDomains []string
	MaxBodyBytes   int
}

// Fetcher implements scrape.Fetcher using a Colly collector cloned per fetch.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	base      *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	base := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	transport := newHTTPTransport()
	base.WithTransport(transport)

	return &Fetcher{cfg: cfg, transport: transport, base: base}
}

// Fetch executes a single HTTP GET. Non-2xx responses surface through
// OnError and are returned as errors, as are non-HTML documents.
func (f *Fetcher) Fetch(ctx context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	c := &capture{start: time.Now(), headers: request.Headers}
	collector := f.collector()
	c.register(collector)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(request.URL)
	}()

	select {
	case <-ctx.Done():
		return scrape.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return scrape.FetchResponse{}, fmt.Errorf("colly visit %s: %w", request.URL, err)
		}
		if c.err != nil {
			return scrape.FetchResponse{}, fmt.Errorf("colly response %s: %w", request.URL, c.err)
		}
		return c.result, nil
	}
}

func (f *Fetcher) collector() *colly.Collector {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.AllowedDomains = f.cfg.AllowedDomains
	collector.MaxBodySize = f.cfg.MaxBodyBytes
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)
	return collector
}

// capture collects the outcome of one Visit.
type capture struct {
	start   time.Time
	headers http.Header
	result  scrape.FetchResponse
	err     error
}

func (c *capture) register(hooks collectorHooks) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range c.headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		if err := checkHTML(r.Headers); err != nil {
			c.err = err
			return
		}
		c.result = scrape.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(c.start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		c.err = err
	})
}

// checkHTML accepts a missing Content-Type since some event sites omit it.
func checkHTML(headers *http.Header) error {
	if headers == nil {
		return nil
	}
	raw := headers.Get("Content-Type")
	if raw == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrNotHTML, raw)
	}
	if mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		return fmt.Errorf("%w: %s", ErrNotHTML, mediaType)
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
