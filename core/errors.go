package core

import "errors"

var (
	// ErrNotInitialized is returned by operations that need an active mailbox
	// or presence target (Send, DiscoverAgents, ...) before one exists.
	ErrNotInitialized = errors.New("mailbox not initialized: call Startup first")

	// ErrMailboxStartFailed is returned by Startup when the gateway reports a
	// non-exceptional start failure.
	ErrMailboxStartFailed = errors.New("mailbox start failed")

	// ErrInvalidIdentity is returned for an empty or malformed agent identity.
	ErrInvalidIdentity = errors.New("invalid agent identity")

	// ErrKeyNotFound is returned by presence stores when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")
)
