// Package metrics exposes prometheus instrumentation for gatekeeper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/safedep/gatekeeper/core/gatekeeper"
)

// Metrics provides observability for evaluation, dispatch and the gateway.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	// Check outcomes by check key and outcome kind
	CheckOutcome *prometheus.CounterVec

	// Verdicts by kind
	Verdicts *prometheus.CounterVec

	// Evaluations that ran out of time
	Timeouts prometheus.Counter

	// Policy cache fills by result: loaded, invalid, error
	PolicyLoads *prometheus.CounterVec

	// Full evaluation latency
	EvaluateLatency prometheus.Histogram

	// Dispatch actions by action and result
	DispatchActions *prometheus.CounterVec

	// Gateway frames received by op
	GatewayFrames *prometheus.CounterVec

	// Join events waiting for a worker
	QueueDepth prometheus.Gauge

	// Join events dropped because the queue was full
	Dropped prometheus.Counter
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CheckOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_check_outcomes_total",
			Help: "Total check outcomes by check and outcome",
		}, []string{"check", "outcome"}),

		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_verdicts_total",
			Help: "Total verdicts by kind",
		}, []string{"verdict"}),

		Timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_evaluation_timeouts_total",
			Help: "Total evaluations that exceeded the time bound",
		}),

		PolicyLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_policy_loads_total",
			Help: "Total policy cache fills by result",
		}, []string{"result"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeeper_evaluate_duration_seconds",
			Help:    "Duration of a full join evaluation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		DispatchActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_dispatch_actions_total",
			Help: "Total platform actions by action and result",
		}, []string{"action", "result"}),

		GatewayFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_gateway_frames_total",
			Help: "Total gateway frames received by op",
		}, []string{"op"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_pipeline_queue_depth",
			Help: "Join events waiting for a worker",
		}),

		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_pipeline_dropped_total",
			Help: "Join events dropped because the queue was full",
		}),
	}
}

// ObserveCheck records the outcome of a single check.
func (m *Metrics) ObserveCheck(checkKey string, kind gatekeeper.OutcomeKind) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(checkKey, kind.String()).Inc()
	}
}

// ObserveVerdict records a finished verdict.
func (m *Metrics) ObserveVerdict(verdict *gatekeeper.Verdict) {
	if m == nil || verdict == nil {
		return
	}

	m.Verdicts.WithLabelValues(string(verdict.Kind)).Inc()
	m.EvaluateLatency.Observe(verdict.Duration.Seconds())
	if verdict.TimedOut {
		m.Timeouts.Inc()
	}
}

// ObservePolicyLoad records a policy cache fill.
func (m *Metrics) ObservePolicyLoad(result string) {
	if m != nil {
		m.PolicyLoads.WithLabelValues(result).Inc()
	}
}

// IncrementDispatch records a platform action.
func (m *Metrics) IncrementDispatch(action, result string) {
	if m != nil {
		m.DispatchActions.WithLabelValues(action, result).Inc()
	}
}

// IncrementGatewayFrame records a received gateway frame.
func (m *Metrics) IncrementGatewayFrame(op string) {
	if m != nil {
		m.GatewayFrames.WithLabelValues(op).Inc()
	}
}

// SetQueueDepth records the number of queued join events.
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

// IncrementDropped records a dropped join event.
func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

var _ gatekeeper.Observer = (*Metrics)(nil)
