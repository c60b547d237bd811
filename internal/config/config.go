package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the promptdex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Auth      AuthConfig      `yaml:"auth"`
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

// StoreConfig selects the primary backend and tunes the orchestrator.
type StoreConfig struct {
	Driver string `yaml:"driver"` // redis, sqlite, memory (default: redis)

	// Dim is the vector dimension enforced by the backends and requested
	// from the embedding provider.
	Dim int `yaml:"dim"`

	// MaxHotDocs is an advisory budget for the in-memory fallback.
	MaxHotDocs int `yaml:"max_hot_docs"`

	// OpTimeoutMs bounds each backend call. 0 inherits the request context.
	OpTimeoutMs int `yaml:"op_timeout_ms"`

	// ReprobeIntervalMs re-checks a primary that failed at startup.
	// 0 disables re-probing: a primary down at boot stays down.
	ReprobeIntervalMs int `yaml:"reprobe_interval_ms"`
}

// CacheConfig bounds the query-result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"` // -1 disables caching
	TTLMs      int `yaml:"ttl_ms"`
}

// RedisConfig holds the Redis backend settings.
type RedisConfig struct {
	Addrs           []string `yaml:"addrs"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	DB              int      `yaml:"db"`
	Index           string   `yaml:"index"`
	KeyPrefix       string   `yaml:"key_prefix"`
	HNSWM           int      `yaml:"hnsw_m"` // 0 keeps a FLAT index
	HNSWEFConstruct int      `yaml:"hnsw_ef_construction"`
}

// SQLiteConfig holds the SQLite backend settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedding provider settings. An empty api_key
// disables embedding: seed files must then carry precomputed vectors.
// base_url points the OpenAI-compatible client at any provider; provider
// is the label used in logs and metrics.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`

	// QueryInstruction and DocumentInstruction are prefixes for
	// instruction-tuned models (e5, bge). Empty means no prefix.
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`

	// CacheEntries bounds the text → vector cache. -1 disables it.
	CacheEntries int `yaml:"cache_entries"`

	Budget BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps embedding token spend. Zero limits mean unlimited.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	Action            string `yaml:"action"` // warn, reject (default: warn)
}

// IngestConfig controls seed loading at startup.
type IngestConfig struct {
	SeedFile  string `yaml:"seed_file"` // empty disables boot ingest
	BatchSize int    `yaml:"batch_size"`
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
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "redis"
	}
	if c.Store.Dim <= 0 {
		c.Store.Dim = 1536
	}
	if c.Store.MaxHotDocs <= 0 {
		c.Store.MaxHotDocs = 1000
	}
	if c.Store.OpTimeoutMs <= 0 {
		c.Store.OpTimeoutMs = 5000
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 100
	}
	if c.Cache.TTLMs <= 0 {
		c.Cache.TTLMs = 300000
	}
	if c.Redis.Index == "" {
		c.Redis.Index = "promptdex:docs:idx"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "promptdex:docs:"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "promptdex.db"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.CacheEntries == 0 {
		c.Embedding.CacheEntries = 2048
	}
	if c.Embedding.Budget.Action == "" {
		c.Embedding.Budget.Action = "warn"
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 64
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Store.Driver {
	case "redis":
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for the redis driver")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required for the sqlite driver")
		}
	case "memory":
		// no backend settings required
	default:
		return fmt.Errorf(
			"store.driver must be \"redis\", \"sqlite\" or \"memory\", got %q", c.Store.Driver)
	}
	if c.Store.Dim <= 0 {
		return fmt.Errorf("store.dim must be positive, got %d", c.Store.Dim)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject": // empty defaults to warn
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	return nil
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
