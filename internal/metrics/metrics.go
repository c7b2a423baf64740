// Package metrics defines custom Prometheus metrics for mediacache.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// sizeBuckets are exponential buckets for payload size histograms (bytes).
var sizeBuckets = []float64{1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864}

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacache_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediacache_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Pipeline metrics.
var (
	// CacheLookupsTotal counts existence checks by tenant and outcome
	// (hit, miss, error).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacache_cache_lookups_total",
			Help: "Cache existence checks by outcome",
		},
		[]string{"tenant", "outcome"},
	)

	// EncodeDuration observes transcode latency in seconds by output format.
	EncodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediacache_encode_duration_seconds",
			Help:    "Transcode latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)

	// OriginFetchBytes observes fetched source payload sizes.
	OriginFetchBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediacache_origin_fetch_bytes",
			Help:    "Fetched source payload size in bytes",
			Buckets: sizeBuckets,
		},
	)

	// StoredBytesTotal counts bytes written to object storage by provider.
	StoredBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacache_stored_bytes_total",
			Help: "Bytes written to object storage",
		},
		[]string{"provider"},
	)

	// PipelineErrorsTotal counts pipeline failures by error kind.
	PipelineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacache_pipeline_errors_total",
			Help: "Pipeline failures by error kind",
		},
		[]string{"kind"},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from main) so that metrics
// registration can be made conditional on configuration. It is safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			CacheLookupsTotal,
			EncodeDuration,
			OriginFetchBytes,
			StoredBytesTotal,
			PipelineErrorsTotal,
		)
	})
}

// NormalizePath maps request paths to fixed templates suitable for use as
// Prometheus metric labels. The route surface is small and flat, so anything
// unrecognized collapses to a single bucket.
func NormalizePath(path string) string {
	switch path {
	case "/", "":
		return "/"
	case "/optimize", "/upload", "/monitor", "/health", "/metrics":
		return path
	}
	if strings.HasPrefix(path, "/docs") {
		return "/docs"
	}
	return "/other"
}
