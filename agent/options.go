package agent

import (
	"time"

	"github.com/hupe1980/agentshim/config"
	"github.com/hupe1980/agentshim/core"
	"github.com/hupe1980/agentshim/logging"
	"github.com/hupe1980/agentshim/metrics"
)

// GatewayFactory builds the mailbox gateway for a resolved broker config.
type GatewayFactory func(cfg config.BrokerConfig, logger logging.Logger) (core.MailboxGateway, error)

// PresenceFactory builds the presence store for a resolved broker config.
// The store targets the same server the gateway uses.
type PresenceFactory func(cfg config.BrokerConfig) (core.PresenceStore, error)

// Options configures an Agent.
type Options struct {
	// Config holds log level and heartbeat interval. The zero value loads
	// config.FromEnv().
	Config config.AgentConfig
	// Broker selects the broker connection. Nil reads the environment.
	Broker config.BrokerSource
	// Gateway builds the mailbox gateway. Nil means the mailbox capability
	// is unavailable and the agent runs without one.
	Gateway GatewayFactory
	// Presence builds the presence store. Nil disables presence.
	Presence PresenceFactory
	// Logger overrides the logger built from Config.
	Logger logging.Logger
	// Metrics records dispatch and lifecycle metrics. Nil disables them.
	Metrics *metrics.Collectors
	// Clock stamps heartbeats. Defaults to time.Now.
	Clock func() time.Time
}

// WithConfig sets the agent config.
func WithConfig(cfg config.AgentConfig) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithBroker sets the broker source.
func WithBroker(src config.BrokerSource) func(o *Options) {
	return func(o *Options) { o.Broker = src }
}

// WithGateway sets the gateway factory.
func WithGateway(f GatewayFactory) func(o *Options) {
	return func(o *Options) { o.Gateway = f }
}

// WithPresence sets the presence store factory.
func WithPresence(f PresenceFactory) func(o *Options) {
	return func(o *Options) { o.Presence = f }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics sets the metric collectors.
func WithMetrics(m *metrics.Collectors) func(o *Options) {
	return func(o *Options) { o.Metrics = m }
}
