// Package metrics defines the gateway's prometheus collectors (spec §5
// "Observability"). Grounded on the counter/summary shape
// absmach-magistrala/internal/metrics.go builds for its services, adapted
// from go-kit wrappers to direct github.com/prometheus/client_golang
// collectors since the gateway has no RPC-service interface to wrap --
// internal/connector, internal/modlr and internal/httpapi call these
// collectors directly at the points where a request or submission resolves.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the gateway registers, namespaced under
// "smppgw".
type Metrics struct {
	ConnectorState   *prometheus.GaugeVec
	SubmitsTotal     *prometheus.CounterVec
	SubmitFailures   *prometheus.CounterVec
	DeliverReceipts  *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPLatencySecs  *prometheus.HistogramVec
}

// New builds and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	const ns = "smppgw"

	m := &Metrics{
		ConnectorState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "connector_bound",
			Help:      "1 if the named connector currently holds a bound session, else 0.",
		}, []string{"connector"}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "submit_sm_total",
			Help:      "Number of submit_sm PDUs sent per connector.",
		}, []string{"connector"}),
		SubmitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "submit_sm_failures_total",
			Help:      "Number of submit_sm PDUs that failed (timeout or transport error) per connector.",
		}, []string{"connector"}),
		DeliverReceipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deliver_sm_total",
			Help:      "Number of inbound deliver_sm PDUs handled per connector and kind (dlr|mo).",
		}, []string{"connector", "kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests handled, by route and status class.",
		}, []string{"route", "status"}),
		HTTPLatencySecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.ConnectorState,
		m.SubmitsTotal,
		m.SubmitFailures,
		m.DeliverReceipts,
		m.HTTPRequests,
		m.HTTPLatencySecs,
	)
	return m
}

// SetConnectorBound records whether name currently holds a bound session.
func (m *Metrics) SetConnectorBound(name string, bound bool) {
	v := 0.0
	if bound {
		v = 1.0
	}
	m.ConnectorState.WithLabelValues(name).Set(v)
}
