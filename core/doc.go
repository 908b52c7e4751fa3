// Package core provides the foundational domain types and contracts shared by
// the agent shim:
//
//   - Lifecycle State and agent Identity
//   - HealthStatus snapshots
//   - Handler and Hooks, the application's extension points
//   - MailboxGateway and its message types, the send/receive capability
//   - PresenceStore and PresenceRecord, the discovery registry primitives
//
// Implementations live in the mailbox, presence and agent packages; core
// keeps only small interfaces and value types so backends can be swapped.
package core
