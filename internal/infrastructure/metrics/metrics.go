// Package metrics exposes Prometheus collectors of the learning hub.
// Collectors live on a dedicated registry so tests can build as many
// instances as they need.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "learning_hub"

// Metrics holds every collector.
type Metrics struct {
	registry *prometheus.Registry

	pointsCredited     *prometheus.CounterVec
	achievementsEarned *prometheus.CounterVec
	awardFailures      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	eventsHandled *prometheus.CounterVec
}

// New registers collectors on a fresh registry, with Go runtime and
// process collectors included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		pointsCredited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "points_credited_total",
				Help:      "Points credited to learners, by reason kind",
			},
			[]string{"reason"},
		),
		achievementsEarned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "achievements_granted_total",
				Help:      "Achievements granted, by achievement",
			},
			[]string{"achievement"},
		),
		awardFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "achievement_award_failures_total",
				Help:      "Achievement awards that failed and were skipped",
			},
			[]string{"achievement"},
		),

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),

		jobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_job_runs_total",
				Help:      "Scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduler_job_duration_seconds",
				Help:      "Scheduled job duration",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"job"},
		),

		eventsHandled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_handled_total",
				Help:      "In-process event deliveries by event type and result",
			},
			[]string{"event", "result"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS
// ══════════════════════════════════════════════════════════════════════════════

// PointsCredited counts a credit. reason is the kind prefix ("lesson_completed",
// "achievement", "quiz_passed"), never the full reason with an ID.
func (m *Metrics) PointsCredited(reason string, amount int) {
	m.pointsCredited.WithLabelValues(reason).Add(float64(amount))
}

func (m *Metrics) AchievementGranted(achievementID string) {
	m.achievementsEarned.WithLabelValues(achievementID).Inc()
}

func (m *Metrics) AwardFailed(achievementID string) {
	m.awardFailures.WithLabelValues(achievementID).Inc()
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP
// ══════════════════════════════════════════════════════════════════════════════

// ObserveHTTP records one served request. route is the route template,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(route, method string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(took.Seconds())
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// ObserveJob records a scheduled job run.
func (m *Metrics) ObserveJob(job string, took time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// EventHandled records one handler invocation on the in-process bus.
func (m *Metrics) EventHandled(eventType string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.eventsHandled.WithLabelValues(eventType, result).Inc()
}
