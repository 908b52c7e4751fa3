package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentshim/core"
)

const waitFor = 2 * time.Second

type recorder struct {
	mu   sync.Mutex
	msgs []core.MailboxMessage
}

func (r *recorder) deliver(_ context.Context, msg core.MailboxMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) snapshot() []core.MailboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.MailboxMessage(nil), r.msgs...)
}

func startGateway(t *testing.T, b *InMemoryBroker, agentID string, deliver core.DeliveryFunc) *InMemoryGateway {
	t.Helper()
	g := b.Gateway()
	ok, err := g.Start(context.Background(), agentID, deliver, nil)
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = g.Stop(context.Background()) })
	return g
}

func TestInMemoryGateway_SendDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBroker()

	var rec recorder
	startGateway(t, b, "b", rec.deliver)
	a := startGateway(t, b, "a", func(context.Context, core.MailboxMessage) {})

	for i := range 3 {
		id, err := a.Send(ctx, "b", core.Envelope{Type: "ping", Content: map[string]any{"n": i}}, core.DirectMessageKind)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, waitFor, 5*time.Millisecond)

	msgs := rec.snapshot()
	for i, msg := range msgs {
		assert.Equal(t, "a", msg.Sender)
		assert.Equal(t, "b", msg.Recipient)
		assert.Equal(t, core.DirectMessageKind, msg.Kind)
		assert.Equal(t, "ping", msg.Payload.Type)
		assert.Equal(t, map[string]any{"n": float64(i)}, msg.Payload.Content)
	}

	require.Eventually(t, func() bool { return b.Len("b") == 0 }, waitFor, 5*time.Millisecond)
}

func TestInMemoryGateway_QueuesUntilRecipientStarts(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBroker()
	a := startGateway(t, b, "a", func(context.Context, core.MailboxMessage) {})

	_, err := a.Send(ctx, "late", core.Envelope{Type: "hello"}, core.DirectMessageKind)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Len("late"))

	var rec recorder
	startGateway(t, b, "late", rec.deliver)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "hello", rec.snapshot()[0].Payload.Type)
}

func TestInMemoryGateway_Unreachable(t *testing.T) {
	b := NewInMemoryBroker()
	b.SetReachable(false)

	ok, err := b.Gateway().Start(context.Background(), "a", func(context.Context, core.MailboxMessage) {}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryGateway_SendBeforeStart(t *testing.T) {
	_, err := NewInMemoryBroker().Gateway().Send(context.Background(), "b", core.Envelope{Type: "x"}, core.DirectMessageKind)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestInMemoryGateway_SendUnmarshalableContent(t *testing.T) {
	b := NewInMemoryBroker()
	a := startGateway(t, b, "a", func(context.Context, core.MailboxMessage) {})

	_, err := a.Send(context.Background(), "b", core.Envelope{Type: "x", Content: func() {}}, core.DirectMessageKind)
	assert.Error(t, err)
	assert.Equal(t, 0, b.Len("b"))
}

func TestInMemoryGateway_SecondGatewayForSameAgentRejected(t *testing.T) {
	b := NewInMemoryBroker()
	startGateway(t, b, "a", func(context.Context, core.MailboxMessage) {})

	ok, err := b.Gateway().Start(context.Background(), "a", func(context.Context, core.MailboxMessage) {}, nil)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestInMemoryGateway_RedeliversUnackedAfterRestart(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBroker()
	sender := startGateway(t, b, "sender", func(context.Context, core.MailboxMessage) {})

	entered := make(chan struct{})
	release := make(chan struct{})
	first := b.Gateway()
	ok, err := first.Start(ctx, "worker", func(context.Context, core.MailboxMessage) {
		close(entered)
		<-release
	}, nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = sender.Send(ctx, "worker", core.Envelope{Type: "job"}, core.DirectMessageKind)
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("message was not delivered")
	}

	// The first consumer dies while the message is still in flight.
	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, first.Stop(stopCtx), context.DeadlineExceeded)

	var rec recorder
	var metrics core.RecoveryMetrics
	second := b.Gateway()
	ok, err = second.Start(ctx, "worker", rec.deliver, func(_ context.Context, m core.RecoveryMetrics) {
		metrics = m
	})
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = second.Stop(context.Background()) })

	close(release)

	msgs := rec.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "job", msgs[0].Payload.Type)
	assert.Equal(t, 1, metrics.TotalRecovered)
	assert.Equal(t, 1, metrics.BatchesProcessed)
}

func TestInMemoryGateway_StopIsIdempotent(t *testing.T) {
	b := NewInMemoryBroker()
	g := b.Gateway()
	ok, err := g.Start(context.Background(), "a", func(context.Context, core.MailboxMessage) {}, nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Stop(context.Background()))
	require.NoError(t, g.Stop(context.Background()))

	_, err = g.Send(context.Background(), "b", core.Envelope{Type: "x"}, core.DirectMessageKind)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestInMemoryGateway_Pending(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBroker()

	g := b.Gateway()
	_, err := g.Pending(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)

	startGateway(t, b, "a", func(context.Context, core.MailboxMessage) {})
	sender := startGateway(t, b, "s", func(context.Context, core.MailboxMessage) {})
	_, err = sender.Send(ctx, "idle", core.Envelope{Type: "x"}, core.DirectMessageKind)
	require.NoError(t, err)

	n, err := sender.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 1, b.Len("idle"))
}
