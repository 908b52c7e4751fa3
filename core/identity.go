package core

import (
	"fmt"
	"slices"
	"strings"
)

// Identity names an agent and the capability tags it advertises. It is
// immutable: the constructor copies the capability slice and Capabilities
// returns a copy.
type Identity struct {
	agentID      string
	capabilities []string
}

// NewIdentity validates the agent id and builds an Identity. Duplicate
// capability tags are collapsed, keeping the first occurrence so reporting
// order follows insertion order.
func NewIdentity(agentID string, capabilities ...string) (Identity, error) {
	if strings.TrimSpace(agentID) == "" {
		return Identity{}, fmt.Errorf("%w: agent id must not be empty", ErrInvalidIdentity)
	}

	caps := make([]string, 0, len(capabilities))
	for _, c := range capabilities {
		if !slices.Contains(caps, c) {
			caps = append(caps, c)
		}
	}

	return Identity{agentID: agentID, capabilities: caps}, nil
}

// MustIdentity is like NewIdentity but panics on error. Intended for examples and tests.
func MustIdentity(agentID string, capabilities ...string) Identity {
	id, err := NewIdentity(agentID, capabilities...)
	if err != nil {
		panic(err)
	}
	return id
}

// AgentID returns the unique agent identifier.
func (i Identity) AgentID() string { return i.agentID }

// Capabilities returns a copy of the capability tags in insertion order.
func (i Identity) Capabilities() []string {
	out := make([]string, len(i.capabilities))
	copy(out, i.capabilities)
	return out
}

// HasCapability reports whether the identity advertises capability. A bare
// name matches any version of it.
func (i Identity) HasCapability(capability string) bool {
	return matchCapability(i.capabilities, capability)
}

// IsZero reports whether the identity was never initialized.
func (i Identity) IsZero() bool { return i.agentID == "" }
