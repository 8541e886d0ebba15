// Package metrics exposes the Prometheus registry used by the dump tool.
// Collectors are defined next to the code they measure (client, cache,
// ratelimit, export) and registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all collectors are attached to.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - onenote_requests_total{endpoint, status} (Counter)
//   - onenote_request_duration_seconds{endpoint} (Histogram)
//   - onenote_errors_total{class} (Counter): client, server, rate_limit, network, malformed
//
// Backoff Metrics (pkg/client):
//   - onenote_rate_limit_waits_total (Counter): waits caused by HTTP 429
//   - onenote_rate_limit_wait_seconds (Histogram): wait duration
//   - onenote_retry_exhausted_total (Counter): only when an attempt cap is configured
//
// Throttle Metrics (pkg/ratelimit):
//   - onenote_throttled (Gauge): 1 while a throttle window is active
//   - onenote_throttle_carryover_seconds (Histogram): time waited for a window left by an earlier run
//
// Cache Metrics (pkg/cache):
//   - onenote_content_cache_hits_total (Counter)
//   - onenote_content_cache_misses_total (Counter)
//   - onenote_content_cache_errors_total{operation} (Counter)
//
// Export Metrics (pkg/export):
//   - onenote_pages_exported_total (Counter)
//
// Example Prometheus Queries:
//
//   # Requests per endpoint
//   sum by (endpoint) (rate(onenote_requests_total[5m]))
//
//   # Time spent backing off
//   sum(rate(onenote_rate_limit_wait_seconds_sum[1h]))
