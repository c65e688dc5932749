package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "feedsync"

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Feed fetches by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of feed fetches including parsing",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms up to ~25s
	})

	mergeEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merge_entries_total",
		Help:      "Entries processed by merges, by result",
	}, []string{"result"})

	mergeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merge_failures_total",
		Help:      "Merges that failed, by operation",
	}, []string{"operation"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Duration of entry listing queries",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
	})
)

// ObserveFetch records one fetch. outcome is "success" or a failure kind.
func ObserveFetch(outcome string, d time.Duration) {
	fetchTotal.WithLabelValues(outcome).Inc()
	fetchDuration.Observe(d.Seconds())
}

func ObserveMerge(inserted, skipped, removed int) {
	mergeEntries.WithLabelValues("inserted").Add(float64(inserted))
	mergeEntries.WithLabelValues("skipped").Add(float64(skipped))
	mergeEntries.WithLabelValues("removed").Add(float64(removed))
}

func ObserveMergeFailure(operation string) {
	mergeFailures.WithLabelValues(operation).Inc()
}

func ObserveQuery(d time.Duration) {
	queryDuration.Observe(d.Seconds())
}
