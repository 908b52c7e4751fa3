package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentshim/core"
)

// MessageBuilder provides a fluent helper for constructing mailbox messages
// in tests.
// Example:
//
//	msg := NewMessageBuilder().From("a").To("b").Type("ping").Content(map[string]any{"n": 1}).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id        string
	sender    string
	recipient string
	kind      string
	msgType   string
	content   any
	sentAt    time.Time
}

// NewMessageBuilder creates a builder for a direct message from "sender".
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{sender: "sender", kind: core.DirectMessageKind}
}

// ID overrides the generated message id (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// From sets the sender (chainable).
func (b *MessageBuilder) From(s string) *MessageBuilder { b.sender = s; return b }

// To sets the recipient (chainable).
func (b *MessageBuilder) To(r string) *MessageBuilder { b.recipient = r; return b }

// Kind sets the transport kind (chainable).
func (b *MessageBuilder) Kind(k string) *MessageBuilder { b.kind = k; return b }

// Type sets the envelope type (chainable).
func (b *MessageBuilder) Type(t string) *MessageBuilder { b.msgType = t; return b }

// Content sets the envelope content (chainable).
func (b *MessageBuilder) Content(c any) *MessageBuilder { b.content = c; return b }

// SentAt sets the send timestamp (chainable).
func (b *MessageBuilder) SentAt(t time.Time) *MessageBuilder { b.sentAt = t; return b }

// Build returns the message, generating an id if none was set.
func (b *MessageBuilder) Build() core.MailboxMessage {
	id := b.id
	if id == "" {
		id = uuid.NewString()
	}
	sentAt := b.sentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	return core.MailboxMessage{
		ID:        id,
		Sender:    b.sender,
		Recipient: b.recipient,
		Kind:      b.kind,
		Payload:   core.Envelope{Type: b.msgType, Content: b.content},
		SentAt:    sentAt,
	}
}
