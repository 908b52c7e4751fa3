// Package agent contains the agent lifecycle controller.
//
// An Agent owns one identity and drives it through the lifecycle
//
//	initializing -> ready -> stopping -> stopped
//
// with error reachable when the mailbox cannot be started. Startup wires the
// mailbox gateway, registers presence and runs the application's OnStartup
// hook; Shutdown reverses the sequence and always reaches stopped.
//
// Execution model:
//   - Inbound messages arrive through the gateway's delivery callback and are
//     routed by envelope type to the handler registry. Handler faults are
//     counted and logged, never propagated.
//   - Send, DiscoverAgents, GetAgentInfo and FindAgentsByCapability require a
//     started mailbox or presence target and fail with core.ErrNotInitialized
//     otherwise.
//   - A background heartbeat re-writes the presence record every
//     HeartbeatInterval so it outlives the fixed presence TTL while the
//     process is alive.
//
// Startup and Shutdown must be serialized by the caller. Everything else is
// safe for concurrent use.
package agent
