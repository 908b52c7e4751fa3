package core

import "context"

// Handler processes the content of one inbound message. content is the
// untyped "content" value of the envelope (usually map[string]any after JSON
// decoding). A returned error is counted as a handler fault.
type Handler func(ctx context.Context, content any) error

// Hooks are the two extension points an embedding application supplies.
// OnStartup runs after the mailbox is wired and presence registered;
// OnShutdown runs first during shutdown.
type Hooks interface {
	OnStartup(ctx context.Context) error
	OnShutdown(ctx context.Context) error
}

// HookFuncs adapts plain functions to the Hooks interface. Nil fields are no-ops.
type HookFuncs struct {
	Startup  func(ctx context.Context) error
	Shutdown func(ctx context.Context) error
}

// OnStartup calls Startup if set.
func (h HookFuncs) OnStartup(ctx context.Context) error {
	if h.Startup == nil {
		return nil
	}
	return h.Startup(ctx)
}

// OnShutdown calls Shutdown if set.
func (h HookFuncs) OnShutdown(ctx context.Context) error {
	if h.Shutdown == nil {
		return nil
	}
	return h.Shutdown(ctx)
}

// NopHooks is a Hooks implementation that does nothing.
type NopHooks = HookFuncs
