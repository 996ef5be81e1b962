// Package metrics exposes Prometheus collectors for check runs.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aki_checks_total",
			Help: "Total number of site checks by resulting status",
		},
		[]string{"site", "status"},
	)

	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aki_check_duration_seconds",
			Help:    "Time to fetch and evaluate one site",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"site"},
	)

	SiteAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aki_site_available",
			Help: "1 when the site's condition was met at the last check",
		},
		[]string{"site"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aki_notifications_total",
			Help: "Total number of notification attempts",
		},
		[]string{"site", "kind", "result"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aki_runs_total",
			Help: "Total number of check runs",
		},
		[]string{"result"},
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aki_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		},
	)
)

// ObserveCheck records one site check.
func ObserveCheck(site, status string, available bool, d time.Duration) {
	ChecksTotal.WithLabelValues(site, status).Inc()
	CheckDuration.WithLabelValues(site).Observe(d.Seconds())
	v := 0.0
	if available {
		v = 1
	}
	SiteAvailable.WithLabelValues(site).Set(v)
}

// ObserveNotification records one send attempt. kind is slots, products or error.
func ObserveNotification(site, kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	NotificationsTotal.WithLabelValues(site, kind, result).Inc()
}

// ObserveRun records the end of a run.
func ObserveRun(err error, finished time.Time) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	RunsTotal.WithLabelValues(result).Inc()
	LastRunTimestamp.Set(float64(finished.Unix()))
}

// Push sends the default registry to a Prometheus push gateway. One-shot runs
// exit before anything could scrape them.
func Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
