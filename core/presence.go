package core

import (
	"context"
	"time"
)

// PresenceRecord is the JSON document stored per agent in the presence
// registry. Field names are part of the interop wire format.
type PresenceRecord struct {
	AgentID      string   `json:"agent_id"`
	Capabilities []string `json:"capabilities"`
	RegisteredAt string   `json:"registered_at"`
	State        string   `json:"state"`
}

// HasCapability reports whether the record advertises capability. A bare
// name matches any version of it.
func (r PresenceRecord) HasCapability(capability string) bool {
	return matchCapability(r.Capabilities, capability)
}

// PresenceStore is the key/value + set primitive set the presence registry
// needs. Any store with these operations suffices. Get returns ErrKeyNotFound
// for an absent key; Del and SRem of absent entries are not errors.
type PresenceStore interface {
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	SAdd(ctx context.Context, set, member string) error
	SRem(ctx context.Context, set, member string) error
	SMembers(ctx context.Context, set string) ([]string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Close() error
}
