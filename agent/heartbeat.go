package agent

import (
	"context"
	"errors"
	"time"
)

const heartbeatTimeout = 5 * time.Second

// Heartbeat re-writes the agent's presence record, resetting its TTL, and
// prunes registry members whose record has expired. It is called
// periodically while the agent is ready.
func (a *Agent) Heartbeat(ctx context.Context) error {
	a.mu.RLock()
	reg, rec, state := a.presence, a.record, a.state
	a.mu.RUnlock()

	a.stampHeartbeat()

	if reg == nil {
		return nil
	}

	// registered_at keeps the startup time.
	rec.State = state.String()
	regErr := reg.Refresh(ctx, rec)

	pruned, pruneErr := reg.Prune(ctx)
	if len(pruned) > 0 {
		a.logger.Info("pruned expired agents", "agents", pruned)
	}

	return errors.Join(regErr, pruneErr)
}

func (a *Agent) startHeartbeat() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.mu.Lock()
	a.stopHeartbeat = cancel
	a.heartbeatDone = done
	a.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(a.cfg.HeartbeatInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				beatCtx, cancelBeat := context.WithTimeout(ctx, heartbeatTimeout)
				if err := a.Heartbeat(beatCtx); err != nil {
					a.logger.Warn("heartbeat failed", "error", err)
				}
				cancelBeat()
			}
		}
	}()
}

func (a *Agent) stopHeartbeatLoop() {
	a.mu.Lock()
	cancel, done := a.stopHeartbeat, a.heartbeatDone
	a.stopHeartbeat, a.heartbeatDone = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
