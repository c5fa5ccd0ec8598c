package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func baseConfig() Config {
	cfg := Config{}
	cfg.HTTP.Port = 8080
	cfg.Database.Driver = "memory"
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := baseConfig()

	assert.Equal(t, 4000, cfg.Pipeline.MaxContextTokens)
	assert.Equal(t, 10, cfg.Pipeline.MaxSources)
	assert.Equal(t, 0.6, cfg.Pipeline.QualityThreshold)
	assert.Equal(t, 300, cfg.Pipeline.CacheTTLSec)
	assert.Equal(t, 0.85, cfg.Pipeline.ResultDupThreshold)
	assert.Equal(t, 0.95, cfg.Pipeline.VectorDupThreshold)
	assert.Equal(t, 10, cfg.Pipeline.MemorySize)
}

func TestValidate_Port(t *testing.T) {
	cfg := baseConfig()
	cfg.HTTP.Port = 0
	require.Error(t, cfg.Validate())
}

func TestValidate_Driver(t *testing.T) {
	cfg := baseConfig()
	cfg.Database.Driver = "redis"
	cfg.Database.Addrs = nil
	require.Error(t, cfg.Validate(), "redis driver without addrs")

	cfg.Database.Driver = "postgres"
	require.Error(t, cfg.Validate(), "unknown driver")
}

func TestValidate_Strategies(t *testing.T) {
	cfg := baseConfig()
	cfg.Pipeline.ChunkingStrategy = "magic"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunking_strategy")

	cfg = baseConfig()
	cfg.Pipeline.RerankStrategy = "random"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rerank_strategy")

	cfg = baseConfig()
	cfg.Pipeline.CompressionLevel = 12
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compression_level")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := baseConfig()
	cfg.HTTP.Port = 0
	cfg.Pipeline.ChunkingStrategy = "magic"
	cfg.Pipeline.RerankStrategy = "random"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("RAGPIPE_TEST_KEY", "secret")
	defer os.Unsetenv("RAGPIPE_TEST_KEY")

	out := expandEnvVars([]byte("api_key: ${RAGPIPE_TEST_KEY}"))
	assert.Equal(t, "api_key: secret", string(out))

	out = expandEnvVars([]byte("addr: ${RAGPIPE_MISSING:-localhost:6379}"))
	assert.Equal(t, "addr: localhost:6379", string(out))
}
