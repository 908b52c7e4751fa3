// Package config holds the validated settings an agent is constructed with:
// AgentConfig (log verbosity, heartbeat interval) and BrokerConfig (how to
// reach the shared Redis broker). Both reject bad input eagerly; nothing is
// silently defaulted once a value has been supplied.
package config
