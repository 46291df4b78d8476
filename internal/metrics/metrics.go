package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
	)
	LinkOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "account_link_outcomes_total", Help: "Account reconciliation outcomes"},
		[]string{"source", "outcome"},
	)
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected by the rate limiter"},
		[]string{"route"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_events_published_total", Help: "Auth events handed to the broker"},
		[]string{"key", "result"},
	)
)

func MustRegister() {
	prometheus.MustRegister(RequestsTotal, ReqDuration, InFlight, LinkOutcomes, RateLimited, EventsPublished)
}
