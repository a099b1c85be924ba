// Package metrics exposes the engine's prometheus collectors. Registration is
// on the default registry; hosts embedding the engine scrape them with their
// own handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_token_refresh_attempts_total",
		Help: "Refresh-grant requests actually sent to the token endpoint.",
	})

	RefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_token_refresh_failures_total",
		Help: "Refresh-grant requests rejected by the token endpoint.",
	})

	UnauthorizedReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_request_replays_total",
		Help: "Requests replayed after a 401 triggered a token refresh.",
	})

	PermissionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_permission_cache_hits_total",
		Help: "Permission resolutions served from cache.",
	})

	PermissionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_permission_cache_misses_total",
		Help: "Permission resolutions that required a backend fetch.",
	})

	DepartmentFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_department_fetch_failures_total",
		Help: "Per-department permission fetches that failed and were skipped.",
	})
)
