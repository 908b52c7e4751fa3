package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentshim/core"
	"github.com/hupe1980/agentshim/logging"
)

const (
	// TTL is the fixed lifetime of a presence record.
	TTL = 60 * time.Second
	// AllAgentsKey is the membership set holding every registered agent id.
	AllAgentsKey = "agents:all"

	keyPrefix = "agents:"
)

// ErrMalformedRecord is returned by Get when a stored record is not valid JSON.
var ErrMalformedRecord = errors.New("presence: malformed record")

// Key returns the store key of an agent's presence record.
func Key(agentID string) string { return keyPrefix + agentID }

// Options configures a Registry.
type Options struct {
	Logger logging.Logger
	// Clock stamps registered_at. Defaults to time.Now.
	Clock func() time.Time
	// LookupConcurrency bounds parallel record reads in FindByCapability.
	LookupConcurrency int
}

// Registry performs presence operations against a core.PresenceStore.
// All methods are safe for concurrent use if the store is.
type Registry struct {
	store       core.PresenceStore
	logger      logging.Logger
	clock       func() time.Time
	concurrency int
}

// NewRegistry wraps store.
func NewRegistry(store core.PresenceStore, optFns ...func(o *Options)) *Registry {
	opts := Options{
		Logger:            logging.NoOpLogger{},
		Clock:             time.Now,
		LookupConcurrency: 8,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.LookupConcurrency < 1 {
		opts.LookupConcurrency = 1
	}
	return &Registry{store: store, logger: opts.Logger, clock: opts.Clock, concurrency: opts.LookupConcurrency}
}

// Store returns the underlying store.
func (r *Registry) Store() core.PresenceStore { return r.store }

// Register writes the agent's record with TTL and adds it to the membership
// set. Both writes are attempted; their errors are joined.
func (r *Registry) Register(ctx context.Context, id core.Identity, state core.State) (core.PresenceRecord, error) {
	rec := core.PresenceRecord{
		AgentID:      id.AgentID(),
		Capabilities: id.Capabilities(),
		RegisteredAt: r.clock().UTC().Format(time.RFC3339Nano),
		State:        state.String(),
	}
	return rec, r.Refresh(ctx, rec)
}

// Refresh rewrites rec, resetting its TTL, and re-adds it to the membership set.
func (r *Registry) Refresh(ctx context.Context, rec core.PresenceRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("presence: encode record: %w", err)
	}

	var errs []error
	if err := r.store.SetEx(ctx, Key(rec.AgentID), raw, TTL); err != nil {
		errs = append(errs, fmt.Errorf("presence: write %s: %w", Key(rec.AgentID), err))
	}
	if err := r.store.SAdd(ctx, AllAgentsKey, rec.AgentID); err != nil {
		errs = append(errs, fmt.Errorf("presence: add %s to %s: %w", rec.AgentID, AllAgentsKey, err))
	}
	return errors.Join(errs...)
}

// Unregister deletes the record and removes the id from the membership set.
// Absent entries are not errors.
func (r *Registry) Unregister(ctx context.Context, agentID string) error {
	var errs []error
	if err := r.store.Del(ctx, Key(agentID)); err != nil {
		errs = append(errs, fmt.Errorf("presence: delete %s: %w", Key(agentID), err))
	}
	if err := r.store.SRem(ctx, AllAgentsKey, agentID); err != nil {
		errs = append(errs, fmt.Errorf("presence: remove %s from %s: %w", agentID, AllAgentsKey, err))
	}
	return errors.Join(errs...)
}

// Discover returns the full membership set, sorted.
func (r *Registry) Discover(ctx context.Context) ([]string, error) {
	ids, err := r.store.SMembers(ctx, AllAgentsKey)
	if err != nil {
		return nil, fmt.Errorf("presence: list %s: %w", AllAgentsKey, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Get reads an agent's record. An absent (or expired) record yields nil, nil.
func (r *Registry) Get(ctx context.Context, agentID string) (*core.PresenceRecord, error) {
	raw, err := r.store.Get(ctx, Key(agentID))
	if errors.Is(err, core.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("presence: read %s: %w", Key(agentID), err)
	}

	var rec core.PresenceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, Key(agentID), err)
	}
	return &rec, nil
}

// TTL returns the remaining lifetime of an agent's record.
func (r *Registry) TTL(ctx context.Context, agentID string) (time.Duration, error) {
	return r.store.TTL(ctx, Key(agentID))
}

// FindByCapability returns the records of registered agents advertising
// capability, ordered by agent id. It costs one read per member of the
// membership set; expired and malformed records are skipped.
func (r *Registry) FindByCapability(ctx context.Context, capability string) ([]core.PresenceRecord, error) {
	ids, err := r.Discover(ctx)
	if err != nil {
		return nil, err
	}

	found := make([]*core.PresenceRecord, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := r.Get(gctx, id)
			if errors.Is(err, ErrMalformedRecord) {
				r.logger.Warn("skipping malformed presence record", "agent_id", id, "error", err)
				return nil
			}
			if err != nil {
				return err
			}
			if rec != nil && rec.HasCapability(capability) {
				found[i] = rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]core.PresenceRecord, 0, len(found))
	for _, rec := range found {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Prune removes members of the membership set whose record has expired and
// returns the removed ids.
func (r *Registry) Prune(ctx context.Context) ([]string, error) {
	ids, err := r.Discover(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range ids {
		if _, err := r.store.Get(ctx, Key(id)); !errors.Is(err, core.ErrKeyNotFound) {
			continue
		}
		if err := r.store.SRem(ctx, AllAgentsKey, id); err != nil {
			return removed, fmt.Errorf("presence: prune %s: %w", id, err)
		}
		removed = append(removed, id)
	}
	return removed, nil
}
