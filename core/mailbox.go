package core

import (
	"context"
	"time"
)

// DirectMessageKind is the transport-level message kind used by Agent.Send.
const DirectMessageKind = "direct_message"

// Envelope distinguishes the application message type from the transport kind.
type Envelope struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// MailboxMessage is what a gateway hands to the delivery callback.
type MailboxMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Kind      string    `json:"kind"`
	Payload   Envelope  `json:"payload"`
	SentAt    time.Time `json:"sent_at"`
}

// RecoveryMetrics describes a replay of messages that were pending when the
// previous consumer for an agent died.
type RecoveryMetrics struct {
	TotalRecovered   int
	BatchesProcessed int
	Duration         time.Duration
}

// DeliveryFunc is invoked by a gateway for every delivered message. A
// gateway acknowledges the message only after the callback returns.
type DeliveryFunc func(ctx context.Context, msg MailboxMessage)

// RecoveryFunc is invoked once per completed recovery pass.
type RecoveryFunc func(ctx context.Context, metrics RecoveryMetrics)

// MailboxGateway is the send/receive capability over the message broker.
// Implementations deliver serially per agent with at-least-once semantics.
type MailboxGateway interface {
	// Start connects and begins delivery. ok=false is a non-exceptional
	// failure (e.g. broker unreachable); err is reserved for unexpected faults.
	Start(ctx context.Context, agentID string, deliver DeliveryFunc, onRecovery RecoveryFunc) (ok bool, err error)
	// Send appends payload to recipient's inbox and returns the message id.
	Send(ctx context.Context, recipient string, payload Envelope, kind string) (string, error)
	// Stop ends delivery and releases the connection.
	Stop(ctx context.Context) error
	// Pending returns the best-effort number of undelivered or unacked messages.
	Pending(ctx context.Context) (int64, error)
}
