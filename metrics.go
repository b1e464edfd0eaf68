package batchload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits counts load requests satisfied by an existing cache entry.
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchload_cache_hits_total",
		Help: "Total number of load requests already resolved in the cache",
	})

	// cacheMisses counts load requests that went to the pending queue.
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchload_cache_misses_total",
		Help: "Total number of load requests queued for a batch fetch",
	})

	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchload_runs_total",
		Help: "Total number of dispatch runs with at least one pending batch",
	})

	batchesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchload_batches_dispatched_total",
		Help: "Total number of batch fetches submitted to the runner",
	})

	batchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchload_batches_failed_total",
		Help: "Total number of batch fetches that failed as a whole",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "batchload_run_duration_seconds",
		Help:    "Duration of dispatch runs, including the merge step",
		Buckets: prometheus.DefBuckets,
	})
)
