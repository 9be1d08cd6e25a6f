package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Coletores do proxy
var (
	// Sessões

	SessionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentproxy_sessions_created_total",
			Help: "Total number of create-session calls sent to the Agent Engine",
		},
		[]string{"status"},
	)

	// Streaming

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentproxy_streams_active",
			Help: "Number of chat streams currently being relayed",
		},
	)

	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentproxy_streams_total",
			Help: "Total number of relayed chat streams by outcome",
		},
		[]string{"outcome"},
	)

	RelayedLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentproxy_relayed_lines_total",
			Help: "Total number of backend lines relayed to clients",
		},
	)

	// Upstream

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentproxy_upstream_request_duration_seconds",
			Help:    "Agent Engine latency until response headers, in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method"},
	)

	// HTTP

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentproxy_http_requests_total",
			Help: "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Stream outcomes
const (
	OutcomeCompleted      = "completed"
	OutcomeClientClosed   = "client_closed"
	OutcomeUpstreamFailed = "upstream_failed"
)

// Handler expõe o registro padrão no formato Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}
