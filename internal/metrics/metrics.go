// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crt"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RoutinesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routines_published_total",
		Help:      "Routine versions published, by kind (new, update).",
	}, []string{"kind"})

	RoutineRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routine_latest_repairs_total",
		Help:      "Routine documents whose latest flag had to be corrected.",
	})

	AttendanceMarked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attendance_marked_total",
		Help:      "Attendance records written, by source (faculty, override).",
	}, []string{"source"})

	HandoverDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handover_decisions_total",
		Help:      "Handover requests decided, by outcome.",
	}, []string{"status"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Notification documents created, by type.",
	}, []string{"type"})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_connections",
		Help:      "Open live-update websocket connections.",
	})
)
