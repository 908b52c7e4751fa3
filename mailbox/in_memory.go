package mailbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentshim/core"
	"github.com/hupe1980/agentshim/logging"
)

// InMemoryBroker is an in-process broker holding one inbox per agent.
// Messages sent to an agent that has no running gateway stay queued until
// one starts; messages delivered but not yet acknowledged when a gateway
// stops are replayed to the next gateway for that agent.
type InMemoryBroker struct {
	mu          sync.Mutex
	inboxes     map[string]*inbox
	unreachable bool
	now         func() time.Time
}

type inbox struct {
	queue    []core.MailboxMessage
	inflight map[string]core.MailboxMessage
	order    []string
	signal   chan struct{}
	owner    *InMemoryGateway
}

// NewInMemoryBroker creates an empty reachable broker.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		inboxes: make(map[string]*inbox),
		now:     time.Now,
	}
}

// SetReachable toggles whether gateways can start and send.
func (b *InMemoryBroker) SetReachable(reachable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unreachable = !reachable
}

// Gateway returns a new, not yet started gateway attached to the broker.
func (b *InMemoryBroker) Gateway(optFns ...func(o *GatewayOptions)) *InMemoryGateway {
	opts := GatewayOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryGateway{broker: b, logger: opts.Logger}
}

// Len returns the number of queued plus in-flight messages for agentID.
func (b *InMemoryBroker) Len(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	in, ok := b.inboxes[agentID]
	if !ok {
		return 0
	}
	return len(in.queue) + len(in.inflight)
}

func (b *InMemoryBroker) inboxLocked(agentID string) *inbox {
	in, ok := b.inboxes[agentID]
	if !ok {
		in = &inbox{
			inflight: make(map[string]core.MailboxMessage),
			signal:   make(chan struct{}, 1),
		}
		b.inboxes[agentID] = in
	}
	return in
}

func (in *inbox) notify() {
	select {
	case in.signal <- struct{}{}:
	default:
	}
}

// GatewayOptions configures a gateway.
type GatewayOptions struct {
	Logger logging.Logger
}

// InMemoryGateway implements core.MailboxGateway on an InMemoryBroker.
type InMemoryGateway struct {
	broker *InMemoryBroker
	logger logging.Logger

	mu      sync.Mutex
	agentID string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start claims the agent's inbox and begins serial delivery. Messages left
// in flight by a previous gateway are replayed first and reported through
// onRecovery.
func (g *InMemoryGateway) Start(ctx context.Context, agentID string, deliver core.DeliveryFunc, onRecovery core.RecoveryFunc) (bool, error) {
	if deliver == nil {
		return false, fmt.Errorf("mailbox: nil delivery callback")
	}

	g.mu.Lock()
	if g.cancel != nil {
		g.mu.Unlock()
		return false, fmt.Errorf("mailbox: gateway for %q already started", agentID)
	}
	g.mu.Unlock()

	b := g.broker
	b.mu.Lock()
	if b.unreachable {
		b.mu.Unlock()
		g.logger.Warn("in-memory broker unreachable", "agent_id", agentID)
		return false, nil
	}
	in := b.inboxLocked(agentID)
	if in.owner != nil {
		b.mu.Unlock()
		return false, fmt.Errorf("mailbox: agent %q already has a running gateway", agentID)
	}
	in.owner = g

	var recovered []core.MailboxMessage
	for _, id := range in.order {
		if msg, ok := in.inflight[id]; ok {
			recovered = append(recovered, msg)
		}
	}
	in.inflight = make(map[string]core.MailboxMessage)
	in.order = nil
	b.mu.Unlock()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	g.mu.Lock()
	g.agentID = agentID
	g.cancel = cancel
	g.done = make(chan struct{})
	g.mu.Unlock()

	if len(recovered) > 0 {
		start := time.Now()
		for _, msg := range recovered {
			deliver(ctx, msg)
		}
		if onRecovery != nil {
			onRecovery(ctx, core.RecoveryMetrics{
				TotalRecovered:   len(recovered),
				BatchesProcessed: 1,
				Duration:         time.Since(start),
			})
		}
	}

	go g.run(loopCtx, in, deliver)

	return true, nil
}

func (g *InMemoryGateway) run(ctx context.Context, in *inbox, deliver core.DeliveryFunc) {
	defer close(g.done)

	for {
		msg, ok := g.next(in)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-in.signal:
				continue
			}
		}

		deliver(ctx, msg)
		g.ack(in, msg.ID)

		if ctx.Err() != nil {
			return
		}
	}
}

func (g *InMemoryGateway) next(in *inbox) (core.MailboxMessage, bool) {
	b := g.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(in.queue) == 0 {
		return core.MailboxMessage{}, false
	}
	msg := in.queue[0]
	in.queue = in.queue[1:]
	in.inflight[msg.ID] = msg
	in.order = append(in.order, msg.ID)
	return msg, true
}

func (g *InMemoryGateway) ack(in *inbox, id string) {
	b := g.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(in.inflight, id)
	for i, v := range in.order {
		if v == id {
			in.order = append(in.order[:i], in.order[i+1:]...)
			break
		}
	}
}

// Send enqueues payload in recipient's inbox.
func (g *InMemoryGateway) Send(ctx context.Context, recipient string, payload core.Envelope, kind string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	sender := g.agentID
	started := g.cancel != nil
	g.mu.Unlock()
	if !started {
		return "", ErrNotStarted
	}

	body, err := roundTrip(payload)
	if err != nil {
		return "", err
	}

	b := g.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unreachable {
		return "", ErrUnavailable
	}

	msg := core.MailboxMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Kind:      kind,
		Payload:   body,
		SentAt:    b.now().UTC(),
	}
	in := b.inboxLocked(recipient)
	in.queue = append(in.queue, msg)
	in.notify()

	return msg.ID, nil
}

// Stop halts delivery after the in-progress message, if any, and releases
// the inbox. It is safe to call more than once.
func (g *InMemoryGateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel = nil
	g.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	b := g.broker
	b.mu.Lock()
	if in, ok := b.inboxes[g.agentID]; ok && in.owner == g {
		in.owner = nil
	}
	b.mu.Unlock()

	return err
}

// Pending returns queued plus in-flight messages for the gateway's agent.
func (g *InMemoryGateway) Pending(_ context.Context) (int64, error) {
	g.mu.Lock()
	agentID := g.agentID
	g.mu.Unlock()
	if agentID == "" {
		return 0, ErrNotStarted
	}
	return int64(g.broker.Len(agentID)), nil
}

var _ core.MailboxGateway = (*InMemoryGateway)(nil)
