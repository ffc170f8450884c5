package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const unmatchedRoute = "unmatched"

var (
	// Requests by surface (submit, auth, dashboard, admin), route template and status
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kitsune",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests served, by surface, method, route template and status",
		},
		[]string{"surface", "method", "route", "status"},
	)

	// Submissions sit behind third-party pages, so the low buckets matter most
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kitsune",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds, by surface and route template",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"surface", "method", "route"},
	)

	apiInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kitsune",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "API requests currently being served, by surface",
		},
		[]string{"surface"},
	)
)

// surfaceOf groups a path under the part of the API it belongs to.
// Anything outside /api/v1 (metrics scrapes, stray paths) is "other".
func surfaceOf(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "other"
	}
	head, _, _ := strings.Cut(rest, "/")
	switch head {
	case "forms":
		return "submit"
	case "auth":
		return "auth"
	case "admin":
		return "admin"
	case "dashboard", "stats", "leads":
		return "dashboard"
	case "health":
		return "health"
	default:
		return "other"
	}
}

// routeLabel is the matched route template, so lead and form UUIDs never become label values.
// Requests that fell through to the catch-all share one label.
func routeLabel(c fiber.Ctx) string {
	r := c.Route()
	if r == nil || r.Path == "" || r.Path == "/" || strings.Contains(r.Path, "*") {
		return unmatchedRoute
	}
	return r.Path
}

// Metrics records per-surface request counts, latencies and in-flight requests
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		surface := surfaceOf(c.Path())
		start := time.Now()
		inFlight := apiInFlight.WithLabelValues(surface)
		inFlight.Inc()
		defer inFlight.Dec()

		err := c.Next()

		route := routeLabel(c)
		method := c.Method()
		apiRequestsTotal.WithLabelValues(surface, method, route, strconv.Itoa(c.Response().StatusCode())).Inc()
		apiRequestDuration.WithLabelValues(surface, method, route).Observe(time.Since(start).Seconds())
		return err
	}
}
