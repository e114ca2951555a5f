package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "protogate"

// Request outcomes recorded by GatewayMetrics.
const (
	OutcomeOK           = "ok"
	OutcomeForbidden    = "forbidden"
	OutcomePublishError = "publish_error"
	OutcomeTimeout      = "timeout"
	OutcomeInvalidBody  = "invalid_body"
	OutcomeUnauthorized = "unauthorized"
)

// Dispatch outcomes.
const (
	DispatchResolved    = "resolved"
	DispatchUnmatched   = "unmatched"
	DispatchForwarded   = "forwarded"
	DispatchRejected    = "rejected"
	DispatchMalformed   = "malformed"
	DispatchUnsupported = "unsupported"
)

// GatewayMetrics holds the Prometheus collectors of the gateway. A nil
// *GatewayMetrics records nothing.
type GatewayMetrics struct {
	mu sync.Mutex

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	dispatchedTotal   *prometheus.CounterVec
	webhookTotal      *prometheus.CounterVec
	pendingRequests   prometheus.GaugeFunc
	dispatchQueueSize prometheus.GaugeFunc
	webhookQueueSize  prometheus.GaugeFunc

	registerer prometheus.Registerer
	registered bool
}

// newCounterVec creates a counter vec in the protogate namespace.
func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newGaugeFunc(subsystem, name, help string, fn func() int) prometheus.GaugeFunc {
	if fn == nil {
		fn = func() int { return 0 }
	}
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		func() float64 { return float64(fn()) },
	)
}

// NewGatewayMetrics creates the collectors. pending, queueDepth and
// webhookDepth are sampled on every scrape.
func NewGatewayMetrics(registerer prometheus.Registerer, pending, queueDepth, webhookDepth func() int) *GatewayMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &GatewayMetrics{
		registerer:      registerer,
		requestsTotal:   newCounterVec("requests", "total", "HTTP requests forwarded to the bus by outcome", []string{"outcome"}),
		dispatchedTotal: newCounterVec("dispatch", "messages_total", "Inbound bus messages by kind and outcome", []string{"kind", "outcome"}),
		webhookTotal:    newCounterVec("webhook", "deliveries_total", "Webhook deliveries by outcome", []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "requests",
				Name:      "duration_seconds",
				Help:      "Time from receiving an HTTP request to answering it",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		pendingRequests:   newGaugeFunc("requests", "pending", "Requests waiting for a bus response", pending),
		dispatchQueueSize: newGaugeFunc("dispatch", "queue_depth", "Inbound bus messages waiting to be dispatched", queueDepth),
		webhookQueueSize:  newGaugeFunc("webhook", "queue_depth", "Events waiting for webhook delivery", webhookDepth),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *GatewayMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.dispatchedTotal,
		m.webhookTotal,
		m.pendingRequests,
		m.dispatchQueueSize,
		m.webhookQueueSize,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// ObserveRequest records one HTTP request.
func (m *GatewayMetrics) ObserveRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveDispatch records one inbound bus message.
func (m *GatewayMetrics) ObserveDispatch(kind, outcome string) {
	if m == nil {
		return
	}
	m.dispatchedTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveWebhook records one webhook delivery attempt. It matches
// webhook.Observer.
func (m *GatewayMetrics) ObserveWebhook(_ string, err error) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	m.webhookTotal.WithLabelValues(outcome).Inc()
}

func outcomeOf(err *Error) string {
	if err == nil {
		return OutcomeOK
	}
	switch err.Status {
	case 400:
		return OutcomeInvalidBody
	case 401:
		return OutcomeUnauthorized
	case 403:
		return OutcomeForbidden
	case 504:
		return OutcomeTimeout
	default:
		return OutcomePublishError
	}
}
