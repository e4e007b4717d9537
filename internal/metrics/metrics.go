// Package metrics exposes Prometheus collectors for the HTTP API and the
// streak pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julianstephens/habitual/internal/constants"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: constants.AppName,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: constants.AppName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	completions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "streaks",
			Name:      "completions_total",
			Help:      "Total number of recorded habit completions.",
		},
	)

	milestones = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "streaks",
			Name:      "milestones_total",
			Help:      "Streak milestones reached, by threshold.",
		},
		[]string{"threshold"},
	)

	streakConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "streaks",
			Name:      "save_conflicts_total",
			Help:      "Streak saves rejected by the version check.",
		},
	)

	dataQualityWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "streaks",
			Name:      "data_quality_warnings_total",
			Help:      "Completion rows skipped during recomputation.",
		},
	)

	recalculations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: constants.AppName,
			Subsystem: "streaks",
			Name:      "recalculation_duration_seconds",
			Help:      "Duration of full recalculation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"status"},
	)

	droppedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Milestone events dropped because the bus buffer was full.",
		},
	)

	sinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "events",
			Name:      "sink_failures_total",
			Help:      "Milestone deliveries that failed, by sink.",
		},
		[]string{"sink"},
	)

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: constants.AppName,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open websocket connections.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		completions,
		milestones,
		streakConflicts,
		dataQualityWarnings,
		recalculations,
		droppedEvents,
		sinkFailures,
		wsConnections,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one handled request. path should be the route
// template, not the raw URL, to keep label cardinality bounded.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordCompletion()               { completions.Inc() }
func RecordStreakConflict()           { streakConflicts.Inc() }
func RecordDataQualityWarnings(n int) { dataQualityWarnings.Add(float64(n)) }
func RecordDroppedEvent()             { droppedEvents.Inc() }
func RecordSinkFailure(sink string)   { sinkFailures.WithLabelValues(sink).Inc() }
func WSConnected()                    { wsConnections.Inc() }
func WSDisconnected()                 { wsConnections.Dec() }

func RecordMilestone(threshold int) {
	milestones.WithLabelValues(strconv.Itoa(threshold)).Inc()
}

// RecordRecalculation records a full recalculation pass.
func RecordRecalculation(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	recalculations.WithLabelValues(status).Observe(duration.Seconds())
}
