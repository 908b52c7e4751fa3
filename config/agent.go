package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentshim/logging"
)

// Environment variables read by FromEnv.
const (
	EnvLogLevel          = "AGENT_LOG_LEVEL"
	EnvHeartbeatInterval = "AGENT_HEARTBEAT_INTERVAL"
)

const (
	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "INFO"
	// DefaultHeartbeatInterval is used when no interval is configured.
	DefaultHeartbeatInterval = 30 * time.Second
	// MinHeartbeatInterval is the smallest accepted heartbeat interval.
	MinHeartbeatInterval = time.Second
)

// ValidLogLevels lists the accepted log level names.
var ValidLogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// AgentConfig is the validated, immutable per-agent configuration. The zero
// value is not valid; obtain one via New, Default, FromEnv, FromMap or FromYAML.
type AgentConfig struct {
	logLevel          string
	heartbeatInterval time.Duration
}

// New validates and normalizes the given values.
func New(logLevel string, heartbeatInterval time.Duration) (AgentConfig, error) {
	level := strings.ToUpper(strings.TrimSpace(logLevel))
	if !slices.Contains(ValidLogLevels, level) {
		return AgentConfig{}, invalid("log_level", logLevel, "must be one of %v, got %q", ValidLogLevels, logLevel)
	}
	if heartbeatInterval < MinHeartbeatInterval {
		return AgentConfig{}, invalid("heartbeat_interval", heartbeatInterval, "must be at least %s", MinHeartbeatInterval)
	}
	return AgentConfig{logLevel: level, heartbeatInterval: heartbeatInterval}, nil
}

// Default returns INFO / 30s.
func Default() AgentConfig {
	return AgentConfig{logLevel: DefaultLogLevel, heartbeatInterval: DefaultHeartbeatInterval}
}

// FromEnv loads AGENT_LOG_LEVEL and AGENT_HEARTBEAT_INTERVAL (whole seconds).
// Unset variables take their defaults; malformed ones are errors.
func FromEnv() (AgentConfig, error) {
	level := DefaultLogLevel
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		level = v
	}

	interval := DefaultHeartbeatInterval
	if v, ok := os.LookupEnv(EnvHeartbeatInterval); ok && v != "" {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return AgentConfig{}, invalid("heartbeat_interval", v, "must be an integer number of seconds")
		}
		interval = time.Duration(secs) * time.Second
	}

	return New(level, interval)
}

// FromMap builds a config from a generic map with keys "log_level" and
// "heartbeat_interval" (seconds). Unknown keys are rejected.
func FromMap(data map[string]any) (AgentConfig, error) {
	level := DefaultLogLevel
	interval := DefaultHeartbeatInterval

	for k, v := range data {
		switch k {
		case "log_level":
			s, ok := v.(string)
			if !ok {
				return AgentConfig{}, invalid("log_level", v, "must be a string")
			}
			level = s
		case "heartbeat_interval":
			secs, err := seconds(v)
			if err != nil {
				return AgentConfig{}, invalid("heartbeat_interval", v, "%v", err)
			}
			interval = secs
		default:
			return AgentConfig{}, invalid(k, v, "unknown field")
		}
	}

	return New(level, interval)
}

type fileConfig struct {
	LogLevel          *string `yaml:"log_level"`
	HeartbeatInterval *int    `yaml:"heartbeat_interval"`
}

// FromYAML decodes a YAML document. Unknown fields are rejected.
func FromYAML(r io.Reader) (AgentConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fc fileConfig
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return AgentConfig{}, fmt.Errorf("config: decode yaml: %w", err)
	}

	level := DefaultLogLevel
	if fc.LogLevel != nil {
		level = *fc.LogLevel
	}
	interval := DefaultHeartbeatInterval
	if fc.HeartbeatInterval != nil {
		interval = time.Duration(*fc.HeartbeatInterval) * time.Second
	}
	return New(level, interval)
}

// LoadFile reads a YAML config file from disk.
func LoadFile(path string) (AgentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return FromYAML(bytes.NewReader(raw))
}

// LogLevel returns the normalized (upper case) level name.
func (c AgentConfig) LogLevel() string { return c.logLevel }

// HeartbeatInterval returns the presence refresh interval.
func (c AgentConfig) HeartbeatInterval() time.Duration { return c.heartbeatInterval }

// Level converts the configured level for the logging package.
func (c AgentConfig) Level() logging.LogLevel {
	l, err := logging.ParseLevel(c.logLevel)
	if err != nil {
		return logging.LogLevelInfo
	}
	return l
}

// IsZero reports whether c was never initialized.
func (c AgentConfig) IsZero() bool { return c.logLevel == "" }

// ToMap is the inverse of FromMap.
func (c AgentConfig) ToMap() map[string]any {
	return map[string]any{
		"log_level":          c.logLevel,
		"heartbeat_interval": int(c.heartbeatInterval / time.Second),
	}
}

func seconds(v any) (time.Duration, error) {
	switch n := v.(type) {
	case int:
		return time.Duration(n) * time.Second, nil
	case int64:
		return time.Duration(n) * time.Second, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be a whole number of seconds")
		}
		return time.Duration(n) * time.Second, nil
	case time.Duration:
		return n, nil
	default:
		return 0, fmt.Errorf("must be a number of seconds, got %T", v)
	}
}
