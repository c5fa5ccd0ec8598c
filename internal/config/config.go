package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config holds the ragpipe service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store backend settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	MaxRetries  int    `yaml:"max_retries"`
	UseFallback bool   `yaml:"use_fallback"` // deterministic vectors when the provider is down
}

// PipelineConfig holds the per-call defaults for the RAG pipeline. Every
// field can be overridden per request; these are the values used when a
// request leaves an option unset.
type PipelineConfig struct {
	Collection           string  `yaml:"collection"`
	MaxContextTokens     int     `yaml:"max_context_tokens"`     // default 4000
	MaxSources           int     `yaml:"max_sources"`            // default 10
	QualityThreshold     float64 `yaml:"quality_threshold"`      // default 0.6
	MinQualityScore      float64 `yaml:"min_quality_score"`      // default 0.5
	CacheTTLSec          int     `yaml:"cache_ttl_sec"`          // default 300
	CacheMaxEntries      int     `yaml:"cache_max_entries"`      // default 1000
	ResultDupThreshold   float64 `yaml:"result_dup_threshold"`   // default 0.85
	VectorDupThreshold   float64 `yaml:"vector_dup_threshold"`   // default 0.95
	CompressionLevel     int     `yaml:"compression_level"`      // 1-9, default 5
	CompressionAlgorithm string  `yaml:"compression_algorithm"`  // quantization, reduction, hybrid
	ChunkingStrategy     string  `yaml:"chunking_strategy"`      // semantic, adaptive, topic, standard
	RerankStrategy       string  `yaml:"rerank_strategy"`        // score, diversity, hybrid
	MaxChunkWords        int     `yaml:"max_chunk_words"`        // default 120
	ChunkOverlapWords    int     `yaml:"chunk_overlap_words"`    // default 20
	MemorySize           int     `yaml:"conversation_memory"`    // messages per conversation, default 10
	IdleTimeoutSec       int     `yaml:"conversation_idle_sec"`  // default 1800
	MaxConcurrentQueries int     `yaml:"max_concurrent_queries"` // default 8
	HotAccessThreshold   int     `yaml:"hot_access_threshold"`   // default 10
	ColdAfterDays        int     `yaml:"cold_after_days"`        // default 30

	EnableDeduplication bool `yaml:"enable_deduplication"`
	EnableCompression   bool `yaml:"enable_compression"`
	EnableCache         bool `yaml:"enable_cache"`
	EnableQualityFilter bool `yaml:"enable_quality_filter"`
	EnableReranking     bool `yaml:"enable_reranking"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.Embedding.MaxRetries <= 0 {
		c.Embedding.MaxRetries = 3
	}

	p := &c.Pipeline
	if p.Collection == "" {
		p.Collection = "documents"
	}
	if p.MaxContextTokens <= 0 {
		p.MaxContextTokens = 4000
	}
	if p.MaxSources <= 0 {
		p.MaxSources = 10
	}
	if p.QualityThreshold <= 0 {
		p.QualityThreshold = 0.6
	}
	if p.MinQualityScore <= 0 {
		p.MinQualityScore = 0.5
	}
	if p.CacheTTLSec <= 0 {
		p.CacheTTLSec = 300
	}
	if p.CacheMaxEntries <= 0 {
		p.CacheMaxEntries = 1000
	}
	if p.ResultDupThreshold <= 0 {
		p.ResultDupThreshold = 0.85
	}
	if p.VectorDupThreshold <= 0 {
		p.VectorDupThreshold = 0.95
	}
	if p.CompressionLevel <= 0 {
		p.CompressionLevel = 5
	}
	if p.CompressionAlgorithm == "" {
		p.CompressionAlgorithm = "quantization"
	}
	if p.ChunkingStrategy == "" {
		p.ChunkingStrategy = "semantic"
	}
	if p.RerankStrategy == "" {
		p.RerankStrategy = "score"
	}
	if p.MaxChunkWords <= 0 {
		p.MaxChunkWords = 120
	}
	if p.ChunkOverlapWords <= 0 {
		p.ChunkOverlapWords = 20
	}
	if p.MemorySize <= 0 {
		p.MemorySize = 10
	}
	if p.IdleTimeoutSec <= 0 {
		p.IdleTimeoutSec = 1800
	}
	if p.MaxConcurrentQueries <= 0 {
		p.MaxConcurrentQueries = 8
	}
	if p.HotAccessThreshold <= 0 {
		p.HotAccessThreshold = 10
	}
	if p.ColdAfterDays <= 0 {
		p.ColdAfterDays = 30
	}
}

// Validate checks the configuration for correctness. All problems are
// collected and reported together.
func (c *Config) Validate() error {
	var errs error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver))
		}
	case "memory":
		// no address needed
	default:
		errs = multierr.Append(errs,
			fmt.Errorf("database.driver must be \"redis\" or \"memory\", got %q", c.Database.Driver))
	}
	if c.Pipeline.CompressionLevel < 1 || c.Pipeline.CompressionLevel > 9 {
		errs = multierr.Append(errs,
			fmt.Errorf("pipeline.compression_level must be 1-9, got %d", c.Pipeline.CompressionLevel))
	}
	switch c.Pipeline.CompressionAlgorithm {
	case "quantization", "reduction", "hybrid":
	default:
		errs = multierr.Append(errs,
			fmt.Errorf("pipeline.compression_algorithm must be quantization, reduction, or hybrid, got %q",
				c.Pipeline.CompressionAlgorithm))
	}
	switch c.Pipeline.ChunkingStrategy {
	case "semantic", "adaptive", "topic", "standard":
	default:
		errs = multierr.Append(errs,
			fmt.Errorf("pipeline.chunking_strategy must be semantic, adaptive, topic, or standard, got %q",
				c.Pipeline.ChunkingStrategy))
	}
	switch c.Pipeline.RerankStrategy {
	case "score", "diversity", "hybrid":
	default:
		errs = multierr.Append(errs,
			fmt.Errorf("pipeline.rerank_strategy must be score, diversity, or hybrid, got %q",
				c.Pipeline.RerankStrategy))
	}
	if c.Pipeline.ResultDupThreshold > 1 || c.Pipeline.VectorDupThreshold > 1 {
		errs = multierr.Append(errs, fmt.Errorf("duplicate thresholds must be <= 1"))
	}

	return errs
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
