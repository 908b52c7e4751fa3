package config

import (
	"crypto/tls"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Environment variables consulted when no explicit broker is supplied.
const (
	EnvRedisURL      = "REDIS_URL"
	EnvRedisHost     = "REDIS_HOST"
	EnvRedisPort     = "REDIS_PORT"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"
)

// Broker defaults.
const (
	DefaultRedisPort         = 6379
	DefaultStreamPrefix      = "mailbox"
	DefaultRecoveryMinIdle   = 30 * time.Second
	DefaultRecoveryBatchSize = 50
	DefaultBlockTimeout      = 2 * time.Second
)

// BrokerConfig describes how to reach the shared broker. The mailbox gateway
// and the presence store of one agent are always built from the same value.
type BrokerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
	TLS      bool

	// StreamPrefix namespaces the per-agent inbox streams.
	StreamPrefix string
	// EnableRecovery replays messages left pending by a dead consumer on start
	// and every RecoveryMinIdle while running.
	EnableRecovery bool
	// RecoveryMinIdle is how long a pending entry must be idle before it is claimed.
	RecoveryMinIdle time.Duration
	// RecoveryBatchSize bounds the entries claimed per recovery round trip.
	RecoveryBatchSize int64
	// BlockTimeout bounds one blocking read so Stop is observed promptly.
	BlockTimeout time.Duration
}

// DefaultBrokerConfig returns localhost:6379 db 0 with recovery enabled.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Host:              "localhost",
		Port:              DefaultRedisPort,
		StreamPrefix:      DefaultStreamPrefix,
		EnableRecovery:    true,
		RecoveryMinIdle:   DefaultRecoveryMinIdle,
		RecoveryBatchSize: DefaultRecoveryBatchSize,
		BlockTimeout:      DefaultBlockTimeout,
	}
}

// WithDefaults fills zero-valued tuning fields. Connection fields are only
// defaulted when empty (host) or zero (port).
func (c BrokerConfig) WithDefaults() BrokerConfig {
	d := DefaultBrokerConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.StreamPrefix == "" {
		c.StreamPrefix = d.StreamPrefix
	}
	if c.RecoveryMinIdle <= 0 {
		c.RecoveryMinIdle = d.RecoveryMinIdle
	}
	if c.RecoveryBatchSize <= 0 {
		c.RecoveryBatchSize = d.RecoveryBatchSize
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = d.BlockTimeout
	}
	return c
}

// Validate rejects out-of-range connection values.
func (c BrokerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return invalid("port", c.Port, "must be in 1..65535")
	}
	if c.DB < 0 {
		return invalid("db", c.DB, "must not be negative")
	}
	return nil
}

// Addr returns host:port.
func (c BrokerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RedisOptions returns client options for this target.
func (c BrokerConfig) RedisOptions() *redis.Options {
	opt := &redis.Options{
		Addr:     c.Addr(),
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.TLS {
		opt.TLSConfig = &tls.Config{ServerName: c.Host, MinVersion: tls.VersionTLS12}
	}
	return opt
}

// NewRedisClient opens a client on this target.
func (c BrokerConfig) NewRedisClient() *redis.Client {
	return redis.NewClient(c.RedisOptions())
}

// ParseBrokerURL parses "scheme://[user:pass@]host[:port][/db]" or a bare
// "host[:port]". A missing port defaults to 6379 and an empty host to localhost.
func ParseBrokerURL(raw string) (BrokerConfig, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DefaultBrokerConfig(), nil
	}
	if !strings.Contains(s, "://") {
		s = "redis://" + s
	}

	opt, err := redis.ParseURL(s)
	if err != nil {
		return BrokerConfig{}, invalid("url", raw, "%v", err)
	}

	host, portStr, err := net.SplitHostPort(opt.Addr)
	if err != nil {
		return BrokerConfig{}, invalid("url", raw, "%v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = DefaultRedisPort
	}
	if host == "" {
		host = "localhost"
	}

	cfg := DefaultBrokerConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.Username = opt.Username
	cfg.Password = opt.Password
	cfg.DB = opt.DB
	cfg.TLS = opt.TLSConfig != nil
	if err := cfg.Validate(); err != nil {
		return BrokerConfig{}, err
	}
	return cfg, nil
}

// BrokerSource is one of the three ways a broker can be supplied: an
// explicit config, a connection string or the environment. It is resolved
// exactly once, when the agent is constructed.
type BrokerSource interface {
	resolve() (*BrokerConfig, error)
}

type explicitBroker struct{ cfg BrokerConfig }

func (s explicitBroker) resolve() (*BrokerConfig, error) {
	cfg := s.cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type urlBroker string

func (s urlBroker) resolve() (*BrokerConfig, error) {
	cfg, err := ParseBrokerURL(string(s))
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type envBroker struct{}

func (envBroker) resolve() (*BrokerConfig, error) {
	if u := os.Getenv(EnvRedisURL); u != "" {
		return urlBroker(u).resolve()
	}

	host := os.Getenv(EnvRedisHost)
	if host == "" {
		return nil, nil
	}

	cfg := DefaultBrokerConfig()
	cfg.Host = host
	cfg.Password = os.Getenv(EnvRedisPassword)
	if v := os.Getenv(EnvRedisPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalid("port", v, "must be an integer")
		}
		cfg.Port = port
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalid("db", v, "must be an integer")
		}
		cfg.DB = db
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type noBroker struct{}

func (noBroker) resolve() (*BrokerConfig, error) { return nil, nil }

// BrokerFromConfig uses an explicit structured config.
func BrokerFromConfig(cfg BrokerConfig) BrokerSource { return explicitBroker{cfg: cfg} }

// BrokerFromURL parses a connection string with ParseBrokerURL.
func BrokerFromURL(url string) BrokerSource { return urlBroker(url) }

// BrokerFromEnv reads REDIS_URL, or REDIS_HOST/PORT/PASSWORD/DB. With none
// of them set the agent runs without a mailbox.
func BrokerFromEnv() BrokerSource { return envBroker{} }

// NoBroker disables the mailbox regardless of the environment.
func NoBroker() BrokerSource { return noBroker{} }

// ResolveBroker resolves src; a nil src means BrokerFromEnv. A nil result
// with a nil error means "no mailbox", which is a supported mode.
func ResolveBroker(src BrokerSource) (*BrokerConfig, error) {
	if src == nil {
		src = BrokerFromEnv()
	}
	return src.resolve()
}
