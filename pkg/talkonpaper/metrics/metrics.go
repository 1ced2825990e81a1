// Package metrics exposes Prometheus collectors for access decisions, media
// signing, blog caching and HTTP traffic. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
)

const namespace = "talkonpaper"

// Metrics encapsulates Prometheus instrumentation.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	decisions       *prometheus.CounterVec
	signing         *prometheus.CounterVec
	blogCache       *prometheus.CounterVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_decisions_total",
		Help:      "Access decisions by required content tier and resulting mode",
	}, []string{"content_tier", "mode"})

	signing := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signing_total",
		Help:      "Signed URL resolutions by outcome",
	}, []string{"outcome"})

	blogCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blog_cache_lookups_total",
		Help:      "Blog cache lookups by result",
	}, []string{"result"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	registry.MustRegister(
		decisions, signing, blogCache, requestTotal, requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		decisions:       decisions,
		signing:         signing,
		blogCache:       blogCache,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveDecision counts an access decision. Its signature matches
// talkonpaper.DecisionObserver.
func (m *Metrics) ObserveDecision(content, viewer access.Tier, decision access.Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(content), string(decision.Mode)).Inc()
}

// ObserveSigning counts a resolver outcome. Pass it to media.WithObserver.
func (m *Metrics) ObserveSigning(outcome media.Outcome) {
	if m == nil {
		return
	}
	m.signing.WithLabelValues(string(outcome)).Inc()
}

// RecordCacheLookup counts a blog cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.blogCache.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records request metrics. route should be the matched
// route pattern, not the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestTotal.WithLabelValues(method, route, labelStatus).Inc()
	m.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
}
