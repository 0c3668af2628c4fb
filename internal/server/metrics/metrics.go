package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the console's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surat_admin",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "surat_admin",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	workflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surat_admin",
			Subsystem: "console",
			Name:      "workflow_runs_total",
			Help:      "Console workflow completions by outcome.",
		},
		[]string{"workflow", "outcome"},
	)

	activeConsoles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "surat_admin",
			Subsystem: "console",
			Name:      "active",
			Help:      "Number of open admin consoles.",
		},
	)

	prunedNotifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "surat_admin",
			Subsystem: "notifications",
			Name:      "pruned_total",
			Help:      "Expired notifications removed by the sweeper.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		workflowRuns,
		activeConsoles,
		prunedNotifications,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request. route is the matched
// route pattern, not the raw path.
func ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Workflows records console workflow outcomes.
type Workflows struct{}

func (Workflows) ObserveWorkflow(workflow, outcome string) {
	workflowRuns.WithLabelValues(workflow, outcome).Inc()
}

func SetActiveConsoles(n int) {
	activeConsoles.Set(float64(n))
}

func AddPrunedNotifications(n int) {
	if n > 0 {
		prunedNotifications.Add(float64(n))
	}
}
