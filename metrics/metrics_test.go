package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveCheck("block_all", gatekeeper.OutcomeBlock)
		m.ObserveVerdict(&gatekeeper.Verdict{Kind: gatekeeper.VerdictBlock})
		m.ObservePolicyLoad("loaded")
		m.IncrementDispatch("kick", "success")
		m.IncrementGatewayFrame("member_join")
		m.SetQueueDepth(3)
		m.IncrementDropped()
	})
}

func TestMetrics_Observer(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCheck("block_bots", gatekeeper.OutcomePass)
	m.ObserveCheck("block_bots", gatekeeper.OutcomePass)
	m.ObserveCheck("username_regex", gatekeeper.OutcomeReport)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CheckOutcome.WithLabelValues("block_bots", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckOutcome.WithLabelValues("username_regex", "report")))

	m.ObserveVerdict(&gatekeeper.Verdict{Kind: gatekeeper.VerdictBlock, Duration: time.Millisecond})
	m.ObserveVerdict(&gatekeeper.Verdict{Kind: gatekeeper.VerdictReportOnly, TimedOut: true})
	m.ObserveVerdict(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("block")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("report")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Timeouts))

	m.ObservePolicyLoad("invalid")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyLoads.WithLabelValues("invalid")))
}

func TestMetrics_Pipeline(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetQueueDepth(4)
	m.IncrementDropped()
	m.IncrementDispatch("kick", "error")
	m.IncrementGatewayFrame("member_join")

	assert.Equal(t, 4.0, testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchActions.WithLabelValues("kick", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayFrames.WithLabelValues("member_join")))
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
