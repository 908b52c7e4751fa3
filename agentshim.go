// Package agentshim provides a high-level façade over the agent lifecycle
// controller, wiring a Redis Streams mailbox and a Redis presence registry
// on the same broker connection. Most applications:
//  1. Create an agent via New (or NewInMemory for a single process)
//  2. Register handlers for the message types they serve
//  3. Call Startup, serve, and call Shutdown on exit
//
// The broker is taken from the environment (REDIS_URL or REDIS_HOST and
// friends) unless Options.Broker says otherwise. Without a broker the agent
// runs with no mailbox and no presence.
package agentshim

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentshim/agent"
	"github.com/hupe1980/agentshim/config"
	"github.com/hupe1980/agentshim/core"
	"github.com/hupe1980/agentshim/logging"
	"github.com/hupe1980/agentshim/mailbox"
	"github.com/hupe1980/agentshim/metrics"
	"github.com/hupe1980/agentshim/presence"
)

// Options configures New and NewInMemory.
type Options struct {
	// Config holds log level and heartbeat interval. Zero loads config.FromEnv().
	Config config.AgentConfig
	// Broker selects the broker. Nil reads the environment.
	Broker config.BrokerSource
	// Logger overrides the logger built from Config.
	Logger logging.Logger
	// Registerer, when set, receives the agent's Prometheus collectors.
	Registerer prometheus.Registerer
	// Metrics reuses existing collectors, e.g. when several agents share a
	// registry. It takes precedence over Registerer.
	Metrics *metrics.Collectors
}

// RedisGateway is an agent.GatewayFactory building a mailbox.RedisGateway.
func RedisGateway(cfg config.BrokerConfig, logger logging.Logger) (core.MailboxGateway, error) {
	return mailbox.NewRedisGateway(cfg, func(o *mailbox.RedisOptions) {
		o.Logger = logger
	}), nil
}

// RedisPresence is an agent.PresenceFactory building a presence.RedisStore.
func RedisPresence(cfg config.BrokerConfig) (core.PresenceStore, error) {
	return presence.OpenRedisStore(cfg), nil
}

// New creates an agent backed by Redis for both mailbox and presence.
func New(agentID string, capabilities []string, hooks core.Hooks, optFns ...func(o *Options)) (*agent.Agent, error) {
	opts := buildOptions(optFns)
	return newAgent(agentID, capabilities, hooks, opts, RedisGateway, RedisPresence)
}

// NewInMemory creates an agent whose mailbox is broker and whose presence
// lives in store. Agents sharing broker and store can message and discover
// each other within one process.
func NewInMemory(agentID string, capabilities []string, hooks core.Hooks, broker *mailbox.InMemoryBroker, store core.PresenceStore, optFns ...func(o *Options)) (*agent.Agent, error) {
	opts := buildOptions(optFns)
	if opts.Broker == nil {
		opts.Broker = config.BrokerFromConfig(config.DefaultBrokerConfig())
	}

	gw := func(_ config.BrokerConfig, logger logging.Logger) (core.MailboxGateway, error) {
		return broker.Gateway(func(o *mailbox.GatewayOptions) { o.Logger = logger }), nil
	}
	ps := func(config.BrokerConfig) (core.PresenceStore, error) { return store, nil }

	return newAgent(agentID, capabilities, hooks, opts, gw, ps)
}

func buildOptions(optFns []func(o *Options)) Options {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Metrics == nil && opts.Registerer != nil {
		opts.Metrics = metrics.NewCollectors(opts.Registerer)
	}
	return opts
}

func newAgent(agentID string, capabilities []string, hooks core.Hooks, opts Options, gw agent.GatewayFactory, ps agent.PresenceFactory) (*agent.Agent, error) {
	id, err := core.NewIdentity(agentID, capabilities...)
	if err != nil {
		return nil, err
	}

	return agent.New(id, hooks, func(o *agent.Options) {
		o.Config = opts.Config
		o.Broker = opts.Broker
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.Gateway = gw
		o.Presence = ps
	})
}
