// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET / liveness text for external uptime checks.
//   - GET /healthz and /readyz for Kubernetes liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - /v1/bots, /v1/leaderboard, /v1/refresh and /v1/publish for the
//     command surface; the caller is identified by the X-Channel-ID and
//     X-User-ID headers.
package api
