// Package metrics exposes run outcomes as prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rohankatakam/filewatch/internal/watcher"
)

const namespace = "filewatch"

// Recorder implements watcher.Observer
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	duration      prometheus.Histogram
	newCommits    prometheus.Counter
	notifications *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
	lastChange    prometheus.Gauge
}

// NewRecorder registers the run metrics on a fresh registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Watch runs by outcome and failing stage.",
		}, []string{"outcome", "stage"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a watch run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		newCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_commits_total",
			Help:      "Commits reported as new since the previous checkpoint.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by result.",
		}, []string{"sent"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that reached a decision.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_change_timestamp_seconds",
			Help:      "Unix time of the last run that detected a change.",
		}),
	}

	r.registry.MustRegister(
		r.runs,
		r.duration,
		r.newCommits,
		r.notifications,
		r.lastSuccess,
		r.lastChange,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveRun records one finished run
func (r *Recorder) ObserveRun(res watcher.Result, elapsed time.Duration) {
	r.duration.Observe(elapsed.Seconds())
	r.runs.WithLabelValues(outcome(res), res.Stage).Inc()

	if !res.OK {
		return
	}

	now := float64(time.Now().Unix())
	r.lastSuccess.Set(now)
	if !res.Changed {
		return
	}

	r.lastChange.Set(now)
	r.newCommits.Add(float64(res.NewCommits))
	if res.NewCommits > 0 {
		r.notifications.WithLabelValues(strconv.FormatBool(res.Notified)).Inc()
	}
}

// Handler serves the registry in the prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func outcome(res watcher.Result) string {
	switch {
	case !res.OK:
		return "failed"
	case res.Partial:
		return "partial"
	case res.Changed:
		return "changed"
	default:
		return "unchanged"
	}
}
