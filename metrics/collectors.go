// Package metrics exposes Prometheus collectors for agent dispatch, handler
// faults, send failures, mailbox recovery and lifecycle state.
//
// A nil *Collectors is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentshim/core"
)

const namespace = "agentshim"

// Collectors groups the agent metrics. Every series carries an agent_id label
// so several agents can share one registry.
type Collectors struct {
	Dispatched *prometheus.CounterVec
	HandlerErr *prometheus.CounterVec
	Unhandled  *prometheus.CounterVec
	SendErr    *prometheus.CounterVec
	Recovered  *prometheus.CounterVec
	State      *prometheus.GaugeVec
}

// NewCollectors creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Inbound messages passed to a registered handler.",
		}, []string{"agent_id", "type"}),
		HandlerErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Handler invocations that returned an error or panicked.",
		}, []string{"agent_id", "type"}),
		Unhandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_unhandled_total",
			Help:      "Inbound messages dropped because no handler was registered.",
		}, []string{"agent_id"}),
		SendErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Outbound sends that failed.",
		}, []string{"agent_id"}),
		Recovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_recovered_total",
			Help:      "Messages replayed from a previous consumer's pending list.",
		}, []string{"agent_id"}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_state",
			Help:      "1 for the agent's current lifecycle state, 0 otherwise.",
		}, []string{"agent_id", "state"}),
	}

	if reg != nil {
		reg.MustRegister(c.Dispatched, c.HandlerErr, c.Unhandled, c.SendErr, c.Recovered, c.State)
	}

	return c
}

// ObserveDispatch counts a message handed to the handler for msgType.
func (c *Collectors) ObserveDispatch(agentID, msgType string) {
	if c == nil {
		return
	}
	c.Dispatched.WithLabelValues(agentID, msgType).Inc()
}

// ObserveHandlerError counts a handler fault.
func (c *Collectors) ObserveHandlerError(agentID, msgType string) {
	if c == nil {
		return
	}
	c.HandlerErr.WithLabelValues(agentID, msgType).Inc()
}

// ObserveUnhandled counts a message without a handler.
func (c *Collectors) ObserveUnhandled(agentID string) {
	if c == nil {
		return
	}
	c.Unhandled.WithLabelValues(agentID).Inc()
}

// ObserveSendError counts a failed send.
func (c *Collectors) ObserveSendError(agentID string) {
	if c == nil {
		return
	}
	c.SendErr.WithLabelValues(agentID).Inc()
}

// ObserveRecovery adds the recovered message count.
func (c *Collectors) ObserveRecovery(agentID string, m core.RecoveryMetrics) {
	if c == nil {
		return
	}
	c.Recovered.WithLabelValues(agentID).Add(float64(m.TotalRecovered))
}

// SetState marks state as current for agentID.
func (c *Collectors) SetState(agentID string, state core.State) {
	if c == nil {
		return
	}
	for _, s := range core.AllStates() {
		v := 0.0
		if s == state {
			v = 1
		}
		c.State.WithLabelValues(agentID, s.String()).Set(v)
	}
}
