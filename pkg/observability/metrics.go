// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the apprendo security gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apprendo_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apprendo_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks the number of requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apprendo_requests_in_flight",
			Help: "Requests currently in flight",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter,
	// by the window that tripped.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apprendo_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"window"},
	)

	// ThreatScreenHitsTotal counts payloads rejected by the threat
	// screener, by signature family.
	ThreatScreenHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apprendo_threat_screen_hits_total",
			Help: "Threat screener rejections",
		},
		[]string{"category"},
	)

	// AuthFailuresTotal counts authentication and authorization
	// rejections by reason.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apprendo_auth_failures_total",
			Help: "Authentication failures",
		},
		[]string{"reason"},
	)

	// AuditEventsTotal counts audit log entries by category.
	AuditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apprendo_audit_events_total",
			Help: "Audit events",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		RateLimitRejectedTotal,
		ThreatScreenHitsTotal,
		AuthFailuresTotal,
		AuditEventsTotal,
	)
}
