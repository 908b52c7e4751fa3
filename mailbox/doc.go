// Package mailbox provides core.MailboxGateway implementations.
//
// RedisGateway keeps one Redis stream per agent ("{prefix}:{agent_id}:in")
// read through a consumer group, which gives at-least-once delivery: a
// message is acknowledged only after the delivery callback returns, and
// entries left pending by a dead consumer are claimed and replayed the next
// time a gateway for that agent starts.
//
// InMemoryBroker offers the same contract inside one process and is used by
// tests and single-binary deployments.
//
// Both gateways deliver serially per agent; concurrency exists only across
// agents.
package mailbox
