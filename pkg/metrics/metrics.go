// Package metrics holds the Prometheus collectors for the storage layer and
// background jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oficina",
			Subsystem: "store",
			Name:      "queries_total",
			Help:      "Total number of entity scans, by kind and backend.",
		},
		[]string{"kind", "backend", "pushdown"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oficina",
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Duration of entity scans.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"kind"},
	)

	rowsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oficina",
			Subsystem: "store",
			Name:      "rows_returned_total",
			Help:      "Rows returned by entity scans.",
		},
		[]string{"kind"},
	)

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oficina",
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Inserts, updates and deletes applied, by kind and operation.",
		},
		[]string{"kind", "op"},
	)

	commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oficina",
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "SaveChanges calls, by outcome.",
		},
		[]string{"success"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oficina",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs.",
		},
		[]string{"job", "success"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oficina",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of background job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"job"},
	)
)

func init() {
	Registry.MustRegister(
		queries,
		queryDuration,
		rowsScanned,
		mutations,
		commits,
		jobRuns,
		jobDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordQuery records one scan. pushdown says whether the filter ran in the
// backend or in process.
func RecordQuery(kind, backend string, pushdown bool, rows int, d time.Duration) {
	p := "false"
	if pushdown {
		p = "true"
	}
	queries.WithLabelValues(kind, backend, p).Inc()
	queryDuration.WithLabelValues(kind).Observe(d.Seconds())
	rowsScanned.WithLabelValues(kind).Add(float64(rows))
}

// RecordMutation counts n applied mutations of one operation.
func RecordMutation(kind, op string, n int) {
	mutations.WithLabelValues(kind, op).Add(float64(n))
}

// RecordCommit counts a SaveChanges outcome.
func RecordCommit(err error) {
	commits.WithLabelValues(boolLabel(err == nil)).Inc()
}

// RecordJob records a background job run.
func RecordJob(job string, d time.Duration, err error) {
	jobRuns.WithLabelValues(job, boolLabel(err == nil)).Inc()
	jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
