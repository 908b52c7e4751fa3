// Package testutil contains fakes and builders shared by tests: a scripted
// mailbox gateway, a presence store with injectable failures, recording
// hooks and a fluent mailbox message builder. They are not intended for
// production usage.
package testutil
