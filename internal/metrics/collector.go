// Package metrics exposes Prometheus counters for the generation and
// delivery pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"designer/internal/domain"
)

const namespace = "designer"

// Collector owns every metric registered by the service. It satisfies the
// observer interfaces of the image router, the signed URL cache, the asset
// service and the proxy resolver.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	generationsTotal  *prometheus.CounterVec
	promptFallbacks   *prometheus.CounterVec
	persistOutcomes   *prometheus.CounterVec
	signedCacheLookup *prometheus.CounterVec
	proxyResponses    *prometheus.CounterVec
}

// NewCollector registers metrics on reg. A nil reg gets a fresh registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		generationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_generations_total",
			Help:      "Image generations by provider and result",
		}, []string{"provider", "result"}),
		promptFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_fallbacks_total",
			Help:      "Prompt optimizations that fell back to the deterministic rewrite",
		}, []string{"reason"}),
		persistOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_persist_total",
			Help:      "Asset persistence attempts by outcome",
		}, []string{"outcome"}),
		signedCacheLookup: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signed_url_cache_lookups_total",
			Help:      "Signed URL cache lookups by result",
		}, []string{"result"}),
		proxyResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_proxy_responses_total",
			Help:      "Image proxy responses by status code",
		}, []string{"status"}),
	}
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) GenerationCompleted(kind domain.ProviderKind, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.generationsTotal.WithLabelValues(string(kind), result).Inc()
}

func (c *Collector) PromptFallback(reason string) {
	c.promptFallbacks.WithLabelValues(reason).Inc()
}

func (c *Collector) PersistCompleted(outcome domain.PersistOutcome) {
	c.persistOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (c *Collector) SignedURLCacheHit() {
	c.signedCacheLookup.WithLabelValues("hit").Inc()
}

func (c *Collector) SignedURLCacheMiss() {
	c.signedCacheLookup.WithLabelValues("miss").Inc()
}

func (c *Collector) ProxyResponded(status int) {
	c.proxyResponses.WithLabelValues(strconv.Itoa(status)).Inc()
}
