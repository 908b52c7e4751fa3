package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentshim/core"
)

func TestCollectors_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.ObserveDispatch("a", "ping")
	c.ObserveDispatch("a", "ping")
	c.ObserveHandlerError("a", "ping")
	c.ObserveUnhandled("a")
	c.ObserveSendError("a")
	c.ObserveRecovery("a", core.RecoveryMetrics{TotalRecovered: 3})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Dispatched.WithLabelValues("a", "ping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HandlerErr.WithLabelValues("a", "ping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Unhandled.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SendErr.WithLabelValues("a")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Recovered.WithLabelValues("a")))
}

func TestCollectors_SetState(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.SetState("a", core.StateReady)
	c.SetState("a", core.StateStopped)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.State.WithLabelValues("a", "ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.State.WithLabelValues("a", "stopped")))

	expected := `
# HELP agentshim_messages_unhandled_total Inbound messages dropped because no handler was registered.
# TYPE agentshim_messages_unhandled_total counter
agentshim_messages_unhandled_total{agent_id="a"} 1
`
	c.ObserveUnhandled("a")
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "agentshim_messages_unhandled_total"))
}

func TestCollectors_NilIsNoop(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveDispatch("a", "x")
		c.ObserveHandlerError("a", "x")
		c.ObserveUnhandled("a")
		c.ObserveSendError("a")
		c.ObserveRecovery("a", core.RecoveryMetrics{})
		c.SetState("a", core.StateReady)
	})
}
