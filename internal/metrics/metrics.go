package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts API attempts by method and response status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "The total number of API request attempts.",
		},
		[]string{"method", "code"},
	)

	// RequestDuration is a histogram of API attempt latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_api_request_duration_seconds",
			Help:    "A histogram of API request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RefreshesTotal counts token refresh attempts by outcome.
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_token_refreshes_total",
			Help: "The total number of access token refresh attempts.",
		},
		[]string{"outcome"},
	)

	// ReplaysTotal counts requests replayed after a 401.
	ReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_api_replays_total",
			Help: "The total number of requests replayed after an authorization failure.",
		},
		[]string{"reason"},
	)

	// RefreshInFlight is 1 while a token refresh is outstanding.
	RefreshInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_token_refresh_in_flight",
			Help: "Whether a token refresh is currently in flight.",
		},
	)

	// RefreshWaiters is the number of requests queued behind a refresh.
	RefreshWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_token_refresh_waiters",
			Help: "The number of requests waiting for a token refresh.",
		},
	)

	// CartItems mirrors the cart count.
	CartItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_cart_items",
			Help: "The total quantity of items in the cart.",
		},
	)

	// TasksCompleted counts worker tasks completed successfully.
	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_tasks_completed_total",
			Help: "The total number of worker tasks completed successfully.",
		},
		[]string{"task"},
	)

	// TasksFailed counts worker tasks that returned an error.
	TasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_tasks_failed_total",
			Help: "The total number of worker tasks that failed.",
		},
		[]string{"task"},
	)

	// TaskDuration is a histogram of the time it takes to execute a task.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_task_duration_seconds",
			Help:    "A histogram of worker task execution duration.",
			Buckets: prometheus.LinearBuckets(0.05, 0.05, 10),
		},
		[]string{"task"},
	)

	// TasksInFlight is a gauge that shows the number of currently running tasks.
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_tasks_in_flight",
			Help: "The number of worker tasks currently being executed.",
		},
	)
)
