package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Feed metrics
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskfeed_cycles_total",
			Help: "Synthesis cycles by outcome (transaction, alert, case, error)",
		},
		[]string{"outcome"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskfeed_cycle_duration_seconds",
			Help:    "Time taken by a synthesis cycle including broadcast",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Store metrics
	Records = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskfeed_records",
			Help: "Persisted records by kind",
		},
		[]string{"kind"},
	)

	// Push metrics
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskfeed_subscribers",
			Help: "Currently connected push subscribers",
		},
	)

	EventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskfeed_events_delivered_total",
			Help: "Push events queued for subscribers by event type",
		},
		[]string{"type"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskfeed_events_dropped_total",
			Help: "Push events not delivered by reason",
		},
		[]string{"reason"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskfeed_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskfeed_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(Records)
	prometheus.MustRegister(Subscribers)
	prometheus.MustRegister(EventsDelivered)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
