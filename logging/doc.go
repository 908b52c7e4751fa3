// Package logging provides a minimal logging interface and adapters for agentshim.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// the lifecycle controller, gateways and presence registry use. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - AgentLogger, a configurable slog-backed logger with per-agent context
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false).WithAgent("worker-1")
//	a, err := agent.New(identity, hooks, func(o *agent.Options) { o.Logger = logger })
//
// Each agent owns its logger instance; there is no process-wide registry.
package logging
