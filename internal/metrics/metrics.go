// Package metrics collects and exposes the platform's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the HTTP handlers.
type Recorder interface {
	RecordSignUp(outcome string)
	RecordSignIn(grantType, outcome string)
	RecordRowRequest(table, method string, status int)
	RecordRequestLatency(route string, duration time.Duration)
	RecordRateLimited(endpoint string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	signUps        *prometheus.CounterVec
	signIns        *prometheus.CounterVec
	rowRequests    *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimited    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anlik_eleman_signups_total",
			Help: "Sign-up attempts by outcome.",
		}, []string{"outcome"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anlik_eleman_token_grants_total",
			Help: "Token requests by grant type and outcome.",
		}, []string{"grant_type", "outcome"}),
		rowRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anlik_eleman_row_requests_total",
			Help: "Row API requests by table, method and status code.",
		}, []string{"table", "method", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anlik_eleman_request_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anlik_eleman_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		c.signUps,
		c.signIns,
		c.rowRequests,
		c.requestLatency,
		c.rateLimited,
	)

	return c
}

func (c *Collector) RecordSignUp(outcome string) {
	c.signUps.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSignIn(grantType, outcome string) {
	c.signIns.WithLabelValues(grantType, outcome).Inc()
}

func (c *Collector) RecordRowRequest(table, method string, status int) {
	c.rowRequests.WithLabelValues(table, method, strconv.Itoa(status)).Inc()
}

func (c *Collector) RecordRequestLatency(route string, duration time.Duration) {
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) RecordRateLimited(endpoint string) {
	c.rateLimited.WithLabelValues(endpoint).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) RecordSignUp(string)                        {}
func (Noop) RecordSignIn(string, string)                {}
func (Noop) RecordRowRequest(string, string, int)       {}
func (Noop) RecordRequestLatency(string, time.Duration) {}
func (Noop) RecordRateLimited(string)                   {}
