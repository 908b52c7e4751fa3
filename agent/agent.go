package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentshim/config"
	"github.com/hupe1980/agentshim/core"
	"github.com/hupe1980/agentshim/handler"
	"github.com/hupe1980/agentshim/logging"
	"github.com/hupe1980/agentshim/metrics"
	"github.com/hupe1980/agentshim/presence"
)

const pendingTimeout = 250 * time.Millisecond

// ErrInvalidTransition is returned by Startup when the agent is not in the
// initializing state.
var ErrInvalidTransition = errors.New("agent: invalid lifecycle transition")

// Agent is the lifecycle controller for one agent identity.
type Agent struct {
	identity        core.Identity
	hooks           core.Hooks
	cfg             config.AgentConfig
	gatewayFactory  GatewayFactory
	presenceFactory PresenceFactory
	logger          logging.Logger
	metrics         *metrics.Collectors
	now             func() time.Time
	handlers        *handler.Registry

	// broker is resolved once by New; nil means no mailbox.
	broker *config.BrokerConfig

	mu       sync.RWMutex
	state    core.State
	wired    bool
	gateway  core.MailboxGateway
	presence *presence.Registry
	record   core.PresenceRecord

	stopHeartbeat context.CancelFunc
	heartbeatDone chan struct{}

	lastHeartbeat atomic.Int64
	errorCount    atomic.Int64
}

// New creates an agent in the initializing state. A zero Options.Config is
// loaded from the environment and the broker source is resolved here, so
// malformed settings fail construction. No connection is made until Startup.
func New(identity core.Identity, hooks core.Hooks, optFns ...func(o *Options)) (*Agent, error) {
	if identity.IsZero() {
		return nil, core.ErrInvalidIdentity
	}

	opts := Options{
		Clock: time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.IsZero() {
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, fmt.Errorf("agent %s: load config: %w", identity.AgentID(), err)
		}
		opts.Config = cfg
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if hooks == nil {
		hooks = core.NopHooks{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewSlogLogger(opts.Config.Level(), "json", false).
			WithComponent("agent").
			WithAgent(identity.AgentID())
	}

	if opts.Config.HeartbeatInterval() >= presence.TTL {
		logger.Warn("heartbeat interval is not below the presence TTL; presence may lapse between beats",
			"heartbeat_interval", opts.Config.HeartbeatInterval(), "ttl", presence.TTL)
	}

	broker, err := config.ResolveBroker(opts.Broker)
	if err != nil {
		return nil, fmt.Errorf("agent %s: resolve broker: %w", identity.AgentID(), err)
	}

	a := &Agent{
		identity:        identity,
		hooks:           hooks,
		cfg:             opts.Config,
		broker:          broker,
		gatewayFactory:  opts.Gateway,
		presenceFactory: opts.Presence,
		logger:          logger,
		metrics:         opts.Metrics,
		now:             opts.Clock,
		handlers:        handler.NewRegistry(),
		state:           core.StateInitializing,
	}
	a.metrics.SetState(identity.AgentID(), core.StateInitializing)

	return a, nil
}

// Identity returns the agent's identity.
func (a *Agent) Identity() core.Identity { return a.identity }

// Config returns the agent's config.
func (a *Agent) Config() config.AgentConfig { return a.cfg }

// Logger returns the agent's logger.
func (a *Agent) Logger() logging.Logger { return a.logger }

// State returns the current lifecycle state.
func (a *Agent) State() core.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Ready reports whether the agent is ready or running.
func (a *Agent) Ready() bool { return a.State().IsReady() }

// ErrorCount returns the number of handler faults and send failures so far.
func (a *Agent) ErrorCount() int64 { return a.errorCount.Load() }

// LastHeartbeat returns the last heartbeat time, zero if none.
func (a *Agent) LastHeartbeat() time.Time {
	ns := a.lastHeartbeat.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func (a *Agent) setState(s core.State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.metrics.SetState(a.identity.AgentID(), s)
}

func (a *Agent) stampHeartbeat() {
	a.lastHeartbeat.Store(a.now().UnixNano())
}

// Startup wires the mailbox, registers presence, runs OnStartup and moves
// the agent to ready.
//
// A gateway that reports it could not start moves the agent to error and
// returns core.ErrMailboxStartFailed; a gateway start error moves it to
// error and is returned wrapped. Presence failures are logged only. An
// OnStartup error is returned as is and leaves the agent initializing with
// the mailbox wired. Startup may then be retried, reusing the mailbox and
// presence of the first attempt, or Shutdown releases them.
func (a *Agent) Startup(ctx context.Context) error {
	a.mu.RLock()
	state, wired := a.state, a.wired
	a.mu.RUnlock()

	if state != core.StateInitializing {
		return fmt.Errorf("%w: startup from %s", ErrInvalidTransition, state)
	}

	switch {
	case a.broker == nil:
		a.logger.Info("no broker configured; running without mailbox")
	case wired:
		a.logger.Debug("reusing mailbox from previous startup attempt")
	default:
		if err := a.startMailbox(ctx, *a.broker); err != nil {
			a.setState(core.StateError)
			return err
		}
		a.openPresence(ctx, *a.broker)

		a.mu.Lock()
		a.wired = true
		a.mu.Unlock()
	}

	if err := a.hooks.OnStartup(ctx); err != nil {
		return err
	}

	a.setState(core.StateReady)
	a.stampHeartbeat()
	a.startHeartbeat()

	a.logger.Info("agent ready", "capabilities", a.identity.Capabilities())

	return nil
}

func (a *Agent) startMailbox(ctx context.Context, broker config.BrokerConfig) error {
	agentID := a.identity.AgentID()

	if a.gatewayFactory == nil {
		a.logger.Warn("mailbox gateway unavailable; continuing without mailbox", "addr", broker.Addr())
		return nil
	}

	gw, err := a.gatewayFactory(broker, a.logger)
	if err != nil {
		return fmt.Errorf("agent %s: build mailbox gateway: %w", agentID, err)
	}

	ok, err := gw.Start(ctx, agentID, a.deliver, a.onRecovery)
	if err != nil || !ok {
		if stopErr := gw.Stop(ctx); stopErr != nil {
			a.logger.Debug("stopping failed gateway", "error", stopErr)
		}
		if err != nil {
			a.logger.Error("mailbox start raised", "addr", broker.Addr(), "error", err)
			return fmt.Errorf("agent %s: start mailbox: %w", agentID, err)
		}
		a.logger.Error("mailbox start failed", "addr", broker.Addr())
		return fmt.Errorf("agent %s: %w", agentID, core.ErrMailboxStartFailed)
	}

	a.mu.Lock()
	a.gateway = gw
	a.mu.Unlock()

	a.logger.Info("mailbox started", "addr", broker.Addr(), "stream_prefix", broker.StreamPrefix)

	return nil
}

func (a *Agent) openPresence(ctx context.Context, broker config.BrokerConfig) {
	if a.presenceFactory == nil {
		return
	}

	store, err := a.presenceFactory(broker)
	if err != nil {
		a.logger.Warn("presence store unavailable", "error", err)
		return
	}

	reg := presence.NewRegistry(store, func(o *presence.Options) {
		o.Logger = a.logger
		o.Clock = a.now
	})

	rec, err := reg.Register(ctx, a.identity, core.StateReady)
	if err != nil {
		a.logger.Warn("presence registration failed", "error", err)
	}

	a.mu.Lock()
	a.presence = reg
	a.record = rec
	a.mu.Unlock()
}

// Shutdown runs OnShutdown, unregisters presence and stops the mailbox.
// Every step is attempted and the agent always ends stopped; the OnShutdown
// error, if any, is returned after that. Calling Shutdown on a stopped agent
// is a no-op.
func (a *Agent) Shutdown(ctx context.Context) error {
	if a.State() == core.StateStopped {
		return nil
	}

	a.setState(core.StateStopping)
	a.stopHeartbeatLoop()

	hookErr := a.hooks.OnShutdown(ctx)
	if hookErr != nil {
		a.logger.Error("shutdown hook failed", "error", hookErr)
	}

	a.mu.Lock()
	reg, gw := a.presence, a.gateway
	a.presence, a.gateway = nil, nil
	a.mu.Unlock()

	if reg != nil {
		if err := reg.Unregister(ctx, a.identity.AgentID()); err != nil {
			a.logger.Warn("presence unregistration failed", "error", err)
		}
		if err := reg.Store().Close(); err != nil {
			a.logger.Debug("closing presence store", "error", err)
		}
	}

	if gw != nil {
		if err := gw.Stop(ctx); err != nil {
			a.logger.Warn("mailbox stop failed", "error", err)
		}
	}

	a.setState(core.StateStopped)
	a.logger.Info("agent stopped")

	return hookErr
}

// HealthCheck returns a snapshot of the agent's health. It never fails. The
// queue size is left zero when the gateway cannot report it within
// pendingTimeout.
func (a *Agent) HealthCheck(ctx context.Context) core.HealthStatus {
	a.mu.RLock()
	state, gw := a.state, a.gateway
	a.mu.RUnlock()

	var queue int
	if gw != nil {
		pendingCtx, cancel := context.WithTimeout(ctx, pendingTimeout)
		if n, err := gw.Pending(pendingCtx); err == nil {
			queue = int(n)
		}
		cancel()
	}

	return core.HealthStatus{
		Healthy:          state.IsReady(),
		State:            state,
		LastHeartbeat:    a.LastHeartbeat(),
		MessageQueueSize: queue,
		ErrorCount:       a.errorCount.Load(),
		Metadata: map[string]any{
			core.MetadataAgentID:          a.identity.AgentID(),
			core.MetadataCapabilities:     a.identity.Capabilities(),
			core.MetadataMailboxConnected: gw != nil,
		},
	}
}

func (a *Agent) onRecovery(_ context.Context, m core.RecoveryMetrics) {
	a.logger.Info("recovered pending messages",
		"recovered", m.TotalRecovered,
		"batches", m.BatchesProcessed,
		"duration", m.Duration)
	a.metrics.ObserveRecovery(a.identity.AgentID(), m)
}
