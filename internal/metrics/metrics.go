// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	InstancesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_escalation_instances_created_total",
		Help: "Total number of escalation instances started",
	}, []string{"trigger"})
	InstancesDeduplicated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_escalation_instances_deduplicated_total",
		Help: "Total number of instance starts skipped because an active instance already existed",
	}, []string{"trigger"})
	InstancesResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_escalation_instances_resolved_total",
		Help: "Total number of escalation instances resolved, by reason",
	}, []string{"reason"})
	StepsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_escalation_steps_fired_total",
		Help: "Total number of escalation steps executed",
	}, []string{"trigger", "route"})
	RoutingFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_escalation_routing_failures_total",
		Help: "Total number of steps whose recipient could not be resolved",
	}, []string{"route"})
	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_notification_failures_total",
		Help: "Total number of notification deliveries that failed",
	}, []string{"driver"})
	NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_notifications_sent_total",
		Help: "Total number of notifications delivered",
	}, []string{"driver"})
	JobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_jobs_processed_total",
		Help: "Total number of delayed jobs processed, by outcome (done, retry, failed)",
	}, []string{"kind", "outcome"})
	DetectorScanDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_detector_scan_duration_seconds",
		Help:    "Duration of detector scans",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	DetectorItemErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_detector_item_errors_total",
		Help: "Total number of per-item errors during detector runs",
	}, []string{"trigger"})
	PeriodicRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_periodic_runs_total",
		Help: "Total number of periodic job runs, by outcome (ok, error, panic, skipped)",
	}, []string{"job", "outcome"})
)

func init() {
	prometheus.MustRegister(InstancesCreated)
	prometheus.MustRegister(InstancesDeduplicated)
	prometheus.MustRegister(InstancesResolved)
	prometheus.MustRegister(StepsFired)
	prometheus.MustRegister(RoutingFailures)
	prometheus.MustRegister(NotificationFailures)
	prometheus.MustRegister(NotificationsSent)
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(DetectorScanDuration)
	prometheus.MustRegister(DetectorItemErrors)
	prometheus.MustRegister(PeriodicRuns)
}

// Handler returns an http.Handler exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
