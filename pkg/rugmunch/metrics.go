package rugmunch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics collects Prometheus metrics for dispatched requests and payments.
type Metrics struct {
	registry *prometheus.Registry

	DispatchesTotal  *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	PaymentsTotal    *prometheus.CounterVec
	PaymentAmount    *prometheus.HistogramVec
	RemoteErrors     *prometheus.CounterVec
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		DispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rugmunch_dispatches_total",
				Help: "Total dispatched API requests",
			},
			[]string{"path", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rugmunch_dispatch_duration_seconds",
				Help:    "End-to-end dispatch latency including any payment handshake",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"path"},
		),
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rugmunch_payments_total",
				Help: "Total x402 payment attempts",
			},
			[]string{"network", "scheme", "status"},
		),
		PaymentAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rugmunch_payment_amount",
				Help:    "Settled payment amounts in token units",
				Buckets: []float64{.01, .02, .05, .1, .2, .5, 1},
			},
			[]string{"network"},
		),
		RemoteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rugmunch_remote_errors_total",
				Help: "Structured errors returned by the remote service",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.DispatchesTotal,
		m.DispatchDuration,
		m.PaymentsTotal,
		m.PaymentAmount,
		m.RemoteErrors,
	)

	return m
}

// Registry returns the underlying registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeDispatch(path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(path, status).Inc()
	m.DispatchDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (m *Metrics) observePayment(network, scheme, status string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(network, scheme, status).Inc()
	if status == "settled" && !amount.IsZero() {
		f, _ := amount.Float64()
		m.PaymentAmount.WithLabelValues(network).Observe(f)
	}
}

func (m *Metrics) observeRemoteError(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.RemoteErrors.WithLabelValues(code).Inc()
}
