// Package metrics provides Prometheus collectors for pluginsync. All collectors use
// the "pluginsync" namespace and are registered with the default registry via
// promauto, so they are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pluginsync"

var (
	// GitHubRequestsTotal counts GitHub API calls by endpoint and status.
	// status: the HTTP status code, or "error" when no response was received.
	GitHubRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "github",
			Name:      "requests_total",
			Help:      "Total number of GitHub requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	// ReleaseCacheLookupsTotal counts release cache lookups.
	// result: hit | miss | bypass
	ReleaseCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "github",
			Name:      "release_cache_lookups_total",
			Help:      "Total number of release cache lookups by result.",
		},
		[]string{"result"},
	)

	// DownloadedBytesTotal counts bytes written to installed artifacts.
	DownloadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Total number of artifact bytes downloaded.",
		},
	)

	// DownloadDurationSeconds tracks artifact download latency.
	DownloadDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "duration_seconds",
			Help:      "Duration of artifact downloads in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	// SyncOutcomesTotal counts per-repository sync outcomes.
	// outcome: up_to_date | installed | failed | auth_failed | not_found
	SyncOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "outcomes_total",
			Help:      "Total number of repository sync outcomes by outcome.",
		},
		[]string{"outcome"},
	)

	// SyncPassDurationSeconds tracks full sync pass latency by scope.
	SyncPassDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Duration of sync passes in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"scope"},
	)

	// PendingRestart is 1 while installed plugins wait for a host restart.
	PendingRestart = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pending_restart",
			Help:      "Whether installed plugins are waiting for a host restart.",
		},
	)

	// HTTPRequestsTotal counts API requests by route pattern and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status.",
		},
		[]string{"route", "status"},
	)
)
