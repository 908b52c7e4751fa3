package agent

import (
	"context"

	"github.com/hupe1980/agentshim/core"
	"github.com/hupe1980/agentshim/presence"
)

func (a *Agent) registry() (*presence.Registry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.presence == nil {
		return nil, core.ErrNotInitialized
	}
	return a.presence, nil
}

// DiscoverAgents returns the ids of all registered agents.
func (a *Agent) DiscoverAgents(ctx context.Context) ([]string, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	return reg.Discover(ctx)
}

// GetAgentInfo returns the presence record of agentID, or nil if it has none.
func (a *Agent) GetAgentInfo(ctx context.Context, agentID string) (*core.PresenceRecord, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	return reg.Get(ctx, agentID)
}

// FindAgentsByCapability returns the records of registered agents that
// advertise capability.
func (a *Agent) FindAgentsByCapability(ctx context.Context, capability string) ([]core.PresenceRecord, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	return reg.FindByCapability(ctx, capability)
}
