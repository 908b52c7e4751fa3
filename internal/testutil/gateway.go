package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/agentshim/core"
)

// SentMessage records one Send call on a ScriptedGateway.
type SentMessage struct {
	ID        string
	Recipient string
	Payload   core.Envelope
	Kind      string
}

// ScriptedGateway is a core.MailboxGateway whose outcomes are set by the
// test. Deliver pushes a message through the callback registered by Start.
type ScriptedGateway struct {
	// StartOK and StartErr are returned by Start.
	StartOK  bool
	StartErr error
	// SendErr, when set, fails every Send.
	SendErr error
	// StopErr is returned by Stop.
	StopErr error
	// PendingCount is returned by Pending.
	PendingCount int64
	// PendingFunc, when set, replaces PendingCount.
	PendingFunc func(ctx context.Context) (int64, error)
	// Recovered, when non-zero, is reported through the recovery callback
	// during Start.
	Recovered core.RecoveryMetrics

	mu       sync.Mutex
	agentID  string
	deliver  core.DeliveryFunc
	started  bool
	stopped  int
	sent     []SentMessage
	startCnt int
}

// NewScriptedGateway returns a gateway whose Start succeeds.
func NewScriptedGateway() *ScriptedGateway {
	return &ScriptedGateway{StartOK: true}
}

// Start records the callback and returns StartOK, StartErr.
func (g *ScriptedGateway) Start(ctx context.Context, agentID string, deliver core.DeliveryFunc, onRecovery core.RecoveryFunc) (bool, error) {
	g.mu.Lock()
	g.startCnt++
	if g.StartErr != nil || !g.StartOK {
		g.mu.Unlock()
		return g.StartOK, g.StartErr
	}
	g.agentID = agentID
	g.deliver = deliver
	g.started = true
	recovered := g.Recovered
	g.mu.Unlock()

	if recovered.TotalRecovered > 0 && onRecovery != nil {
		onRecovery(ctx, recovered)
	}
	return true, nil
}

// Send records the message or returns SendErr.
func (g *ScriptedGateway) Send(_ context.Context, recipient string, payload core.Envelope, kind string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return "", errors.New("scripted gateway not started")
	}
	if g.SendErr != nil {
		return "", g.SendErr
	}
	id := uuid.NewString()
	g.sent = append(g.sent, SentMessage{ID: id, Recipient: recipient, Payload: payload, Kind: kind})
	return id, nil
}

// Stop marks the gateway stopped and returns StopErr.
func (g *ScriptedGateway) Stop(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.started = false
	g.stopped++
	return g.StopErr
}

// Pending returns PendingCount, or the result of PendingFunc.
func (g *ScriptedGateway) Pending(ctx context.Context) (int64, error) {
	if g.PendingFunc != nil {
		return g.PendingFunc(ctx)
	}
	return g.PendingCount, nil
}

// Deliver invokes the delivery callback synchronously. It reports false if
// the gateway is not started.
func (g *ScriptedGateway) Deliver(ctx context.Context, msg core.MailboxMessage) bool {
	g.mu.Lock()
	deliver, started := g.deliver, g.started
	g.mu.Unlock()
	if !started || deliver == nil {
		return false
	}
	deliver(ctx, msg)
	return true
}

// Sent returns a copy of the recorded sends.
func (g *ScriptedGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}

// StopCalls returns how many times Stop was called.
func (g *ScriptedGateway) StopCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

// StartCalls returns how many times Start was called.
func (g *ScriptedGateway) StartCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startCnt
}

// AgentID returns the agent id passed to Start.
func (g *ScriptedGateway) AgentID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.agentID
}

var _ core.MailboxGateway = (*ScriptedGateway)(nil)
