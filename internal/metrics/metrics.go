package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counts page-level outcomes by mode (build, inspect) and outcome
// (ok, fetch_error, fs_error, invalid_url, absent).
var Pages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pagemirror_pages_total",
	Help: "Total number of requested pages by mode and outcome",
}, []string{"mode", "outcome"})

// Counts asset downloads by outcome (saved, failed, skipped).
var Assets = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pagemirror_assets_total",
	Help: "Total number of asset references processed by outcome",
}, []string{"outcome"})

var Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pagemirror_fetches_total",
	Help: "Total number of HTTP fetches by outcome",
}, []string{"outcome"})

var FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pagemirror_fetch_duration_seconds",
	Help:    "Time taken to fetch a page or asset",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
})
