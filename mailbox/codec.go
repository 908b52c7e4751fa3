package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/agentshim/core"
)

var (
	// ErrNotStarted is returned by Send before Start succeeded or after Stop.
	ErrNotStarted = errors.New("mailbox: gateway not started")
	// ErrUnavailable is returned when the broker cannot be reached.
	ErrUnavailable = errors.New("mailbox: broker unavailable")
)

// Stream field names.
const (
	fieldSender    = "sender"
	fieldRecipient = "recipient"
	fieldKind      = "kind"
	fieldPayload   = "payload"
	fieldSentAt    = "sent_at"
)

// StreamKey returns the inbox stream of an agent.
func StreamKey(prefix, agentID string) string {
	return prefix + ":" + agentID + ":in"
}

// GroupName returns the consumer group reading an agent's inbox.
func GroupName(prefix, agentID string) string {
	return prefix + ":" + agentID
}

func encodeFields(sender, recipient, kind string, payload core.Envelope, sentAt time.Time) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mailbox: encode payload: %w", err)
	}
	return map[string]any{
		fieldSender:    sender,
		fieldRecipient: recipient,
		fieldKind:      kind,
		fieldPayload:   string(raw),
		fieldSentAt:    sentAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func decodeFields(id string, values map[string]any) (core.MailboxMessage, error) {
	msg := core.MailboxMessage{
		ID:        id,
		Sender:    stringField(values, fieldSender),
		Recipient: stringField(values, fieldRecipient),
		Kind:      stringField(values, fieldKind),
	}

	raw := stringField(values, fieldPayload)
	if raw == "" {
		return msg, fmt.Errorf("mailbox: message %s has no payload", id)
	}
	if err := json.Unmarshal([]byte(raw), &msg.Payload); err != nil {
		return msg, fmt.Errorf("mailbox: decode payload of %s: %w", id, err)
	}

	if ts := stringField(values, fieldSentAt); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg.SentAt = t
		}
	}
	return msg, nil
}

func stringField(values map[string]any, key string) string {
	switch v := values[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// roundTrip gives in-process deliveries the same JSON-decoded content shape
// a Redis delivery produces.
func roundTrip(payload core.Envelope) (core.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return core.Envelope{}, fmt.Errorf("mailbox: encode payload: %w", err)
	}
	var out core.Envelope
	if err := json.Unmarshal(raw, &out); err != nil {
		return core.Envelope{}, fmt.Errorf("mailbox: decode payload: %w", err)
	}
	return out, nil
}

// nextStreamID returns the smallest stream id greater than id
// ("<ms>-<seq>"), used to page through pending entries.
func nextStreamID(id string) (string, error) {
	ms, seq, ok := strings.Cut(id, "-")
	if !ok {
		return "", fmt.Errorf("mailbox: malformed stream id %q", id)
	}
	n, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return "", fmt.Errorf("mailbox: malformed stream id %q: %w", id, err)
	}
	return ms + "-" + strconv.FormatUint(n+1, 10), nil
}
