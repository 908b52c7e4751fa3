package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentshim/core"
)

// RegisterHandler routes messages of msgType to h, replacing any previous
// handler. It may be called at any point in the lifecycle. A nil h removes
// the route.
func (a *Agent) RegisterHandler(msgType string, h core.Handler) {
	a.handlers.Register(msgType, h)
}

// HandlerTypes lists the message types with a registered handler.
func (a *Agent) HandlerTypes() []string { return a.handlers.Types() }

// HandleMessage routes a flat {"type": ..., "content": ...} message without
// going through the mailbox.
func (a *Agent) HandleMessage(ctx context.Context, msg map[string]any) {
	msgType, _ := msg["type"].(string)
	a.dispatch(ctx, msgType, msg["content"])
}

// Send delivers content to target under msgType. It fails with
// core.ErrNotInitialized when no mailbox is started. Gateway failures are
// counted and returned.
func (a *Agent) Send(ctx context.Context, target, msgType string, content any) (string, error) {
	a.mu.RLock()
	gw := a.gateway
	a.mu.RUnlock()
	if gw == nil {
		return "", core.ErrNotInitialized
	}

	id, err := gw.Send(ctx, target, core.Envelope{Type: msgType, Content: content}, core.DirectMessageKind)
	if err != nil {
		a.errorCount.Add(1)
		a.metrics.ObserveSendError(a.identity.AgentID())
		a.logger.Error("send failed", "target", target, "type", msgType, "error", err)
		return "", fmt.Errorf("agent %s: send to %s: %w", a.identity.AgentID(), target, err)
	}

	a.logger.Debug("message sent", "target", target, "type", msgType, "message_id", id)

	return id, nil
}

// deliver is the gateway's delivery callback.
func (a *Agent) deliver(ctx context.Context, msg core.MailboxMessage) {
	a.logger.Debug("message received", "sender", msg.Sender, "type", msg.Payload.Type, "message_id", msg.ID)
	a.dispatch(ctx, msg.Payload.Type, msg.Payload.Content)
}

func (a *Agent) dispatch(ctx context.Context, msgType string, content any) {
	agentID := a.identity.AgentID()

	h, ok := a.handlers.Lookup(msgType)
	if !ok {
		a.logger.Warn("no handler for message type", "type", msgType)
		a.metrics.ObserveUnhandled(agentID)
		return
	}

	a.metrics.ObserveDispatch(agentID, msgType)

	if err := invoke(ctx, h, content); err != nil {
		a.errorCount.Add(1)
		a.metrics.ObserveHandlerError(agentID, msgType)
		a.logger.Error("handler failed", "type", msgType, "error", err)
		return
	}

	a.stampHeartbeat()
}

// invoke runs h, turning a panic into an error.
func invoke(ctx context.Context, h core.Handler, content any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, content)
}
