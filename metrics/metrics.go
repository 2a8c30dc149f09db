package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kudos",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kudos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kudos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ledgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kudos",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by outcome.",
		},
		[]string{"op", "result"},
	)

	ledgerPoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kudos",
			Subsystem: "ledger",
			Name:      "points_total",
			Help:      "Points moved through the ledger.",
		},
		[]string{"kind"},
	)

	redemptionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kudos",
			Subsystem: "redemptions",
			Name:      "transitions_total",
			Help:      "Redemption status changes.",
		},
		[]string{"status"},
	)

	recognitionsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kudos",
			Subsystem: "recognitions",
			Name:      "sent_total",
			Help:      "Recognitions recorded.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kudos",
			Subsystem: "notifications",
			Name:      "total",
			Help:      "Notifications by delivery result.",
		},
		[]string{"result"},
	)

	leaderboardCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kudos",
			Subsystem: "leaderboard",
			Name:      "cache_lookups_total",
			Help:      "Leaderboard cache lookups by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ledgerOperations,
		ledgerPoints,
		redemptionTransitions,
		recognitionsSent,
		notifications,
		leaderboardCache,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordLedgerOperation counts a credit, debit, refund or adjustment by result
// ("applied", "duplicate", "rejected", "error").
func RecordLedgerOperation(op, result string) {
	ledgerOperations.WithLabelValues(op, result).Inc()
}

func RecordLedgerPoints(kind string, amount int64) {
	if amount <= 0 {
		return
	}
	ledgerPoints.WithLabelValues(kind).Add(float64(amount))
}

func RecordRedemptionTransition(status string) {
	redemptionTransitions.WithLabelValues(status).Inc()
}

func RecordRecognition() {
	recognitionsSent.Inc()
}

// RecordNotification counts a notification as "sent", "failed" or "dropped".
func RecordNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

func RecordLeaderboardCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	leaderboardCache.WithLabelValues(result).Inc()
}
