package core

import "time"

// HealthStatus is a point-in-time snapshot derived from the agent's state and
// counters. It is recomputed on every call and never stored.
type HealthStatus struct {
	Healthy          bool           `json:"healthy"`
	State            State          `json:"state"`
	LastHeartbeat    time.Time      `json:"last_heartbeat"`
	MessageQueueSize int            `json:"message_queue_size"`
	ErrorCount       int64          `json:"error_count"`
	Metadata         map[string]any `json:"metadata"`
}

// Metadata keys always present in HealthStatus.Metadata.
const (
	MetadataAgentID          = "agent_id"
	MetadataCapabilities     = "capabilities"
	MetadataMailboxConnected = "mailbox_connected"
)
