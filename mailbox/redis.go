package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentshim/config"
	"github.com/hupe1980/agentshim/core"
	"github.com/hupe1980/agentshim/logging"
)

const (
	readCount    = 10
	retryBackoff = 500 * time.Millisecond
	ackTimeout   = 5 * time.Second
)

// RedisOptions configures a RedisGateway.
type RedisOptions struct {
	// Client overrides the client built from the broker config. A supplied
	// client is not closed by Stop.
	Client redis.UniversalClient
	Logger logging.Logger
	Clock  func() time.Time
}

// RedisGateway implements core.MailboxGateway over Redis Streams.
type RedisGateway struct {
	cfg    config.BrokerConfig
	client redis.UniversalClient
	owned  bool
	logger logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	agentID  string
	stream   string
	group    string
	consumer string
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
}

// NewRedisGateway creates a gateway for cfg. No connection is made until Start.
func NewRedisGateway(cfg config.BrokerConfig, optFns ...func(o *RedisOptions)) *RedisGateway {
	opts := RedisOptions{
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg = cfg.WithDefaults()

	g := &RedisGateway{
		cfg:    cfg,
		client: opts.Client,
		logger: opts.Logger,
		now:    opts.Clock,
	}
	if g.client == nil {
		g.client = cfg.NewRedisClient()
		g.owned = true
	}
	return g
}

// Start pings the server, ensures the consumer group exists, replays
// entries left pending by a dead consumer and starts the read loop, which
// keeps replaying such entries once they reach RecoveryMinIdle.
// An unreachable server yields (false, nil).
func (g *RedisGateway) Start(ctx context.Context, agentID string, deliver core.DeliveryFunc, onRecovery core.RecoveryFunc) (bool, error) {
	if deliver == nil {
		return false, fmt.Errorf("mailbox: nil delivery callback")
	}

	g.mu.Lock()
	if g.cancel != nil {
		g.mu.Unlock()
		return false, fmt.Errorf("mailbox: gateway for %q already started", agentID)
	}
	if g.closed {
		g.mu.Unlock()
		return false, ErrNotStarted
	}
	g.mu.Unlock()

	if err := g.client.Ping(ctx).Err(); err != nil {
		g.logger.Warn("redis mailbox unreachable", "agent_id", agentID, "addr", g.cfg.Addr(), "error", err)
		return false, nil
	}

	stream := StreamKey(g.cfg.StreamPrefix, agentID)
	group := GroupName(g.cfg.StreamPrefix, agentID)

	err := g.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return false, fmt.Errorf("mailbox: create consumer group %s: %w", group, err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	g.mu.Lock()
	g.agentID = agentID
	g.stream = stream
	g.group = group
	g.consumer = agentID + "-" + uuid.NewString()
	g.cancel = cancel
	g.done = make(chan struct{})
	g.mu.Unlock()

	// Recovered deliveries may call Send, so no lock is held here.
	g.sweep(ctx, deliver, onRecovery)

	go g.readLoop(loopCtx, deliver, onRecovery)

	g.logger.Info("redis mailbox started", "agent_id", agentID, "stream", stream)

	return true, nil
}

// sweep runs one recovery pass if recovery is enabled and reports a
// non-empty result to onRecovery.
func (g *RedisGateway) sweep(ctx context.Context, deliver core.DeliveryFunc, onRecovery core.RecoveryFunc) {
	if !g.cfg.EnableRecovery {
		return
	}
	m, err := g.recoverPending(ctx, deliver)
	if err != nil && ctx.Err() == nil {
		g.logger.Warn("mailbox recovery incomplete", "agent_id", g.agentID, "recovered", m.TotalRecovered, "error", err)
	}
	if m.TotalRecovered > 0 && onRecovery != nil {
		onRecovery(ctx, m)
	}
}

// recoverPending claims entries of the group whose idle time reached
// RecoveryMinIdle, delivers and acknowledges them.
func (g *RedisGateway) recoverPending(ctx context.Context, deliver core.DeliveryFunc) (m core.RecoveryMetrics, err error) {
	start := time.Now()
	defer func() { m.Duration = time.Since(start) }()

	cursor := "-"
	for {
		pending, err := g.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: g.stream,
			Group:  g.group,
			Start:  cursor,
			End:    "+",
			Count:  g.cfg.RecoveryBatchSize,
		}).Result()
		if err != nil {
			return m, fmt.Errorf("mailbox: list pending: %w", err)
		}
		if len(pending) == 0 {
			return m, nil
		}

		ids := make([]string, 0, len(pending))
		for _, p := range pending {
			if p.Idle >= g.cfg.RecoveryMinIdle {
				ids = append(ids, p.ID)
			}
		}

		if len(ids) > 0 {
			msgs, err := g.client.XClaim(ctx, &redis.XClaimArgs{
				Stream:   g.stream,
				Group:    g.group,
				Consumer: g.consumer,
				MinIdle:  g.cfg.RecoveryMinIdle,
				Messages: ids,
			}).Result()
			if err != nil {
				return m, fmt.Errorf("mailbox: claim pending: %w", err)
			}
			m.BatchesProcessed++
			for _, msg := range msgs {
				if g.handle(ctx, msg, deliver) {
					m.TotalRecovered++
				}
			}
		}

		if int64(len(pending)) < g.cfg.RecoveryBatchSize {
			return m, nil
		}
		cursor, err = nextStreamID(pending[len(pending)-1].ID)
		if err != nil {
			return m, err
		}
	}
}

// readLoop consumes new entries. Entries left pending by a consumer that died
// shortly before Start are too young to claim at Start, so the loop sweeps
// again every RecoveryMinIdle.
func (g *RedisGateway) readLoop(ctx context.Context, deliver core.DeliveryFunc, onRecovery core.RecoveryFunc) {
	defer close(g.done)

	nextSweep := time.Now().Add(g.cfg.RecoveryMinIdle)
	for {
		if ctx.Err() != nil {
			return
		}

		if now := time.Now(); !now.Before(nextSweep) {
			g.sweep(ctx, deliver, onRecovery)
			nextSweep = now.Add(g.cfg.RecoveryMinIdle)
		}

		streams, err := g.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    g.group,
			Consumer: g.consumer,
			Streams:  []string{g.stream, ">"},
			Count:    readCount,
			Block:    g.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			g.logger.Warn("mailbox read failed", "agent_id", g.agentID, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryBackoff):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				g.handle(ctx, msg, deliver)
			}
		}
	}
}

// handle decodes and delivers one entry, then acknowledges it. Entries that
// cannot be decoded are acknowledged and dropped. It reports whether the
// entry reached the callback.
func (g *RedisGateway) handle(ctx context.Context, entry redis.XMessage, deliver core.DeliveryFunc) bool {
	// XCLAIM returns entries trimmed from the stream with nil values.
	delivered := false
	if entry.Values != nil {
		msg, err := decodeFields(entry.ID, entry.Values)
		if err != nil {
			g.logger.Error("dropping undecodable mailbox entry", "agent_id", g.agentID, "id", entry.ID, "error", err)
		} else {
			deliver(ctx, msg)
			delivered = true
		}
	}

	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := g.client.XAck(ackCtx, g.stream, g.group, entry.ID).Err(); err != nil {
		g.logger.Warn("mailbox ack failed", "agent_id", g.agentID, "id", entry.ID, "error", err)
	}

	return delivered
}

// Send appends payload to the recipient's inbox stream.
func (g *RedisGateway) Send(ctx context.Context, recipient string, payload core.Envelope, kind string) (string, error) {
	g.mu.Lock()
	sender := g.agentID
	started := g.cancel != nil
	g.mu.Unlock()
	if !started {
		return "", ErrNotStarted
	}

	values, err := encodeFields(sender, recipient, kind, payload, g.now())
	if err != nil {
		return "", err
	}

	id, err := g.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(g.cfg.StreamPrefix, recipient),
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("mailbox: send to %s: %w", recipient, err)
	}
	return id, nil
}

// Stop ends the read loop and closes an owned client. A read in progress
// returns within BlockTimeout.
func (g *RedisGateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel = nil
	alreadyClosed := g.closed
	g.closed = true
	g.mu.Unlock()

	var errs []error
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}

	if g.owned && !alreadyClosed {
		if err := g.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mailbox: close client: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Pending returns the number of entries delivered to the group but not yet
// acknowledged.
func (g *RedisGateway) Pending(ctx context.Context) (int64, error) {
	g.mu.Lock()
	stream, group := g.stream, g.group
	g.mu.Unlock()
	if stream == "" {
		return 0, ErrNotStarted
	}

	res, err := g.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

var _ core.MailboxGateway = (*RedisGateway)(nil)
