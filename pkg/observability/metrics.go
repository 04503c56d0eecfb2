package observability

import (
	"context"
	"net/http"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hamsfam"

// Metrics holds the Prometheus collectors fed by a run's hooks and callbacks.
type Metrics struct {
	NodeVisits      *prometheus.CounterVec
	RunnerDuration  *prometheus.HistogramVec
	RunnersInFlight prometheus.Gauge
	Snapshots       prometheus.Counter
	RunsFinished    *prometheus.CounterVec
	Resets          prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg, when given.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits.",
		}, []string{"node_id", "node_type"}),
		RunnerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runner_duration_seconds",
			Help:      "Duration of automatic node executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type", "outcome"}),
		RunnersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runners_in_flight",
			Help:      "Automatic node executions currently running.",
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Run snapshots reported to the host.",
		}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Runs that reached the end of their scenario.",
		}, []string{"scenario"}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_resets_total",
			Help:      "Runs returned to their root node.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.RunnerDuration, m.RunnersInFlight, m.Snapshots, m.RunsFinished, m.Resets)
	}
	return m
}

// Hooks returns lifecycle hooks recording node visits and runner timings.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.NodeID, string(e.NodeType)).Inc()
		},
		OnRunnerStart: func(context.Context, *domain.RunnerEvent) {
			m.RunnersInFlight.Inc()
		},
		OnRunnerFinish: func(_ context.Context, e *domain.RunnerEvent) {
			m.RunnersInFlight.Dec()
			m.RunnerDuration.WithLabelValues(string(e.NodeType), e.Outcome).Observe(e.Duration.Seconds())
		},
	}
}

// Callbacks returns host callbacks counting snapshots, finished runs and resets.
func (m *Metrics) Callbacks() domain.HostCallbacks {
	return domain.HostCallbacks{
		OnProgress: func(context.Context, *domain.ProgressEvent) {
			m.Snapshots.Inc()
		},
		OnHistoryAppend: func(_ context.Context, e *domain.HistoryEvent) {
			m.RunsFinished.WithLabelValues(e.ScenarioKey).Inc()
		},
		OnResetRun: func(context.Context, string) {
			m.Resets.Inc()
		},
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
