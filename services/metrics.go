package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// submissionsTotal counts submit attempts by composite outcome
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_feedback_submissions_total",
		Help: "Submissions by outcome (rejected, succeeded, partial, failed)",
	}, []string{"outcome"})

	// sinkResultsTotal counts per-sink results of accepted submissions
	sinkResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_feedback_sink_results_total",
		Help: "Sink results by sink and status",
	}, []string{"sink", "status"})

	// remoteCallDuration tracks remote call latency
	remoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "route_feedback_remote_call_duration_seconds",
		Help:    "Remote call duration in seconds by step and result",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"step", "result"})
)

func observeRemoteCall(step RemoteStep, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	remoteCallDuration.WithLabelValues(string(step), result).Observe(time.Since(start).Seconds())
}

func observeSubmission(outcome string, sinks map[string]SinkStatus) {
	submissionsTotal.WithLabelValues(outcome).Inc()
	for sink, status := range sinks {
		sinkResultsTotal.WithLabelValues(sink, string(status)).Inc()
	}
}
