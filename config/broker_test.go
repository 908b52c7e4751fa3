package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearRedisEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvRedisURL, EnvRedisHost, EnvRedisPort, EnvRedisPassword, EnvRedisDB} {
		t.Setenv(k, "")
	}
}

func TestParseBrokerURL(t *testing.T) {
	tests := []struct {
		in       string
		host     string
		port     int
		password string
		db       int
		tls      bool
	}{
		{in: "redis://localhost:6379", host: "localhost", port: 6379},
		{in: "redis://cache.internal", host: "cache.internal", port: 6379},
		{in: "cache.internal:7000", host: "cache.internal", port: 7000},
		{in: "cache.internal", host: "cache.internal", port: 6379},
		{in: "", host: "localhost", port: 6379},
		{in: "redis://:s3cret@10.0.0.5:6380/2", host: "10.0.0.5", port: 6380, password: "s3cret", db: 2},
		{in: "rediss://secure.example:6390", host: "secure.example", port: 6390, tls: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg, err := ParseBrokerURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.host, cfg.Host)
			assert.Equal(t, tt.port, cfg.Port)
			assert.Equal(t, tt.password, cfg.Password)
			assert.Equal(t, tt.db, cfg.DB)
			assert.Equal(t, tt.tls, cfg.TLS)
			assert.Equal(t, DefaultStreamPrefix, cfg.StreamPrefix)
			assert.True(t, cfg.EnableRecovery)
		})
	}
}

func TestParseBrokerURL_Invalid(t *testing.T) {
	for _, in := range []string{"http://localhost:6379", "redis://localhost:6379/notadb", "localhost:port"} {
		_, err := ParseBrokerURL(in)
		assert.Error(t, err, in)
	}
}

func TestBrokerConfig_AddrAndOptions(t *testing.T) {
	cfg := BrokerConfig{Host: "redis.local", Port: 6400, Password: "pw", DB: 3}.WithDefaults()
	assert.Equal(t, "redis.local:6400", cfg.Addr())

	opt := cfg.RedisOptions()
	assert.Equal(t, "redis.local:6400", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 3, opt.DB)
	assert.Nil(t, opt.TLSConfig)
	assert.Equal(t, DefaultStreamPrefix, cfg.StreamPrefix)
}

func TestResolveBroker_PriorityAndModes(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv(EnvRedisURL, "redis://from-env:6379")

	explicit := BrokerConfig{Host: "explicit", Port: 7001}
	cfg, err := ResolveBroker(BrokerFromConfig(explicit))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "explicit", cfg.Host)

	cfg, err = ResolveBroker(BrokerFromURL("from-url:7002"))
	require.NoError(t, err)
	assert.Equal(t, "from-url", cfg.Host)
	assert.Equal(t, 7002, cfg.Port)

	cfg, err = ResolveBroker(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "from-env", cfg.Host)

	cfg, err = ResolveBroker(NoBroker())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestResolveBroker_EnvHostVariables(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv(EnvRedisHost, "cluster.local")
	t.Setenv(EnvRedisPort, "6385")
	t.Setenv(EnvRedisPassword, "pw")
	t.Setenv(EnvRedisDB, "4")

	cfg, err := ResolveBroker(BrokerFromEnv())
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "cluster.local", cfg.Host)
	assert.Equal(t, 6385, cfg.Port)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, 4, cfg.DB)

	t.Setenv(EnvRedisPort, "x")
	_, err = ResolveBroker(BrokerFromEnv())
	assert.Error(t, err)
}

func TestResolveBroker_NoEnvMeansNoMailbox(t *testing.T) {
	clearRedisEnv(t)

	cfg, err := ResolveBroker(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestResolveBroker_ExplicitValidation(t *testing.T) {
	_, err := ResolveBroker(BrokerFromConfig(BrokerConfig{Host: "h", Port: 70000}))
	assert.Error(t, err)
}
