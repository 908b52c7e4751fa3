// Package presence implements the cluster presence registry: time-bounded
// per-agent records plus a membership set used for discovery.
//
// Layout in the backing store (shared with other implementations, so the
// names are fixed):
//
//	agents:{agent_id}  JSON PresenceRecord, expires after 60 seconds
//	agents:all         set of agent ids
//
// A crashed agent's record disappears on its own once the TTL elapses; the
// membership set is cleaned lazily by Prune. Two stores are provided:
// RedisStore (go-redis) for real clusters and InMemoryStore for tests and
// single-process setups.
package presence
