package testutil

import (
	"context"
	"time"

	"github.com/hupe1980/agentshim/core"
)

// FailingStore wraps a presence store and fails the operations whose error
// field is set.
type FailingStore struct {
	core.PresenceStore

	SetExErr    error
	GetErr      error
	DelErr      error
	SAddErr     error
	SRemErr     error
	SMembersErr error
}

// NewFailingStore wraps inner.
func NewFailingStore(inner core.PresenceStore) *FailingStore {
	return &FailingStore{PresenceStore: inner}
}

func (s *FailingStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.SetExErr != nil {
		return s.SetExErr
	}
	return s.PresenceStore.SetEx(ctx, key, value, ttl)
}

func (s *FailingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	return s.PresenceStore.Get(ctx, key)
}

func (s *FailingStore) Del(ctx context.Context, key string) error {
	if s.DelErr != nil {
		return s.DelErr
	}
	return s.PresenceStore.Del(ctx, key)
}

func (s *FailingStore) SAdd(ctx context.Context, set, member string) error {
	if s.SAddErr != nil {
		return s.SAddErr
	}
	return s.PresenceStore.SAdd(ctx, set, member)
}

func (s *FailingStore) SRem(ctx context.Context, set, member string) error {
	if s.SRemErr != nil {
		return s.SRemErr
	}
	return s.PresenceStore.SRem(ctx, set, member)
}

func (s *FailingStore) SMembers(ctx context.Context, set string) ([]string, error) {
	if s.SMembersErr != nil {
		return nil, s.SMembersErr
	}
	return s.PresenceStore.SMembers(ctx, set)
}
