package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the proxy's Prometheus collectors on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dappastra",
			Name:      "balance_requests_total",
			Help:      "Balance endpoint responses by network and HTTP status.",
		}, []string{"network", "status"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dappastra",
			Name:      "explorer_request_duration_seconds",
			Help:      "Block explorer call latency by network and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network", "outcome"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.upstream,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveUpstream matches explorer.WithObserver.
func (m *Metrics) ObserveUpstream(network string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(network, outcome(err)).Observe(d.Seconds())
}

func (m *Metrics) countRequest(network string, status int) {
	if m == nil {
		return
	}
	if network == "" {
		network = "none"
	}
	m.requests.WithLabelValues(network, strconv.Itoa(status)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, explorer.ErrAPI):
		return "api_error"
	default:
		return "failed"
	}
}
