// Package metrics exposes Prometheus collectors for the leaderboard service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	refreshCyclesTotal         *prometheus.CounterVec
	refreshDroppedTotal        *prometheus.CounterVec
	refreshDurationSeconds     prometheus.Histogram
	panelsPublishedTotal       *prometheus.CounterVec
	trackedEntries             prometheus.Gauge
	scrapesTotal               *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		refreshCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaderboard_refresh_cycles_total",
				Help: "Total number of clear-and-republish cycles executed, labeled by trigger.",
			},
			[]string{"trigger"},
		)

		refreshDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaderboard_refresh_dropped_total",
				Help: "Refresh requests dropped because a cycle was already running, labeled by trigger.",
			},
			[]string{"trigger"},
		)

		refreshDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leaderboard_refresh_duration_seconds",
				Help:    "Histogram of refresh cycle durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		panelsPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaderboard_panels_published_total",
				Help: "Total number of panels sent to the channel, labeled by status.",
			},
			[]string{"status"},
		)

		trackedEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leaderboard_tracked_entries",
				Help: "Number of entries read during the last refresh cycle.",
			},
		)

		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaderboard_scrapes_total",
				Help: "Total number of bot page scrapes, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaderboard_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaderboard_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaderboard_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations before a scrape.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRefreshCycle records a completed cycle and how long it took.
func ObserveRefreshCycle(trigger string, duration time.Duration, entries int) {
	Init()
	refreshCyclesTotal.WithLabelValues(trigger).Inc()
	refreshDurationSeconds.Observe(duration.Seconds())
	trackedEntries.Set(float64(entries))
}

// ObserveRefreshDropped records a request that arrived while a cycle was running.
func ObserveRefreshDropped(trigger string) {
	Init()
	refreshDroppedTotal.WithLabelValues(trigger).Inc()
}

// ObservePanel records one panel send attempt.
func ObservePanel(status string) {
	Init()
	panelsPublishedTotal.WithLabelValues(status).Inc()
}

// ObserveScrape increments the scrape counter.
func ObserveScrape(site string, status string) {
	Init()
	scrapesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
