package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

type routerMetrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
	callbacks      *prometheus.CounterVec
}

func newRouterMetrics(reg prometheus.Registerer) *routerMetrics {
	m := &routerMetrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gsr",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gsr",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gsr",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gsr",
			Subsystem: "api",
			Name:      "oauth_callbacks_total",
			Help:      "Identity provider callbacks by rendered outcome",
		}, []string{"provider", "outcome"}),
	}
	if reg == nil {
		return m
	}
	for _, collector := range []prometheus.Collector{m.requestTotal, m.requestLatency, m.rateLimitHits, m.callbacks} {
		err := reg.Register(collector)
		var are prometheus.AlreadyRegisteredError
		if err == nil || !errors.As(err, &are) {
			continue
		}
		switch existing := are.ExistingCollector.(type) {
		case *prometheus.CounterVec:
			switch collector {
			case m.requestTotal:
				m.requestTotal = existing
			case m.rateLimitHits:
				m.rateLimitHits = existing
			case m.callbacks:
				m.callbacks = existing
			}
		case *prometheus.HistogramVec:
			m.requestLatency = existing
		}
	}
	return m
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.metrics.requestTotal.With(labels).Inc()
	r.metrics.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	r.metrics.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (r *Router) recordCallback(provider, outcome string) {
	r.metrics.callbacks.With(prometheus.Labels{"provider": provider, "outcome": outcome}).Inc()
}
