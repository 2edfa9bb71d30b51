// Package metrics exposes Prometheus collectors for the storefront API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const outcomeOK = "ok"

type Metrics struct {
	requests   *prometheus.HistogramVec
	cartOps    *prometheus.CounterVec
	pageLookup *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg yields a Metrics that
// records nothing.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	cartOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart mutations by operation and outcome.",
	}, []string{"op", "outcome"})
	pageLookup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "page_cache_lookups_total",
		Help: "Product page cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(requests, cartOps, pageLookup)
	return &Metrics{requests: requests, cartOps: cartOps, pageLookup: pageLookup}
}

// CartOperation counts one cart mutation. An empty code means success.
func (m *Metrics) CartOperation(op, code string) {
	if m == nil || m.cartOps == nil {
		return
	}
	outcome := code
	if outcome == "" {
		outcome = outcomeOK
	}
	m.cartOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) PageCacheLookup(hit bool) {
	if m == nil || m.pageLookup == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.pageLookup.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Middleware times every request by its route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Handler serves the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
