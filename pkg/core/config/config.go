// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leseb/quizsearch/pkg/provider"
)

// Config represents the main configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	QuizStore   QuizStoreConfig   `yaml:"quiz_store"`
	Search      SearchConfig      `yaml:"search"`
	Cache       CacheConfig       `yaml:"cache"`
	Snapshot    SnapshotConfig    `yaml:"snapshot"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig contains logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EmbeddingConfig contains embedding provider configuration
type EmbeddingConfig struct {
	Endpoint      string        `yaml:"endpoint"` // e.g. "https://api.openai.com/v1"
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`      // e.g. "text-embedding-3-small"
	Dimensions    int           `yaml:"dimensions"` // default 768
	Timeout       time.Duration `yaml:"timeout"`
	MinTextLength int           `yaml:"min_text_length"`
}

// VectorStoreConfig contains embedding store backend configuration
type VectorStoreConfig struct {
	Type       string `yaml:"type"`       // memory (default), sqlite, bolt, postgres, milvus
	DSN        string `yaml:"dsn"`        // postgres
	Path       string `yaml:"path"`       // sqlite, bolt
	Address    string `yaml:"address"`    // milvus, e.g. "localhost:19530"
	Collection string `yaml:"collection"` // table / collection / bucket name
	Metric     string `yaml:"metric"`     // only "cosine" is supported
}

// QuizStoreConfig contains quiz store backend configuration
type QuizStoreConfig struct {
	Type string `yaml:"type"` // memory (default) or postgres
	DSN  string `yaml:"dsn"`
}

// SearchConfig tunes the tiered search pipeline
type SearchConfig struct {
	DefaultLimit       int           `yaml:"default_limit"`
	MaxLimit           int           `yaml:"max_limit"`
	NumCandidates      int           `yaml:"num_candidates"`
	ManualScanLimit    int           `yaml:"manual_scan_limit"`
	ManualPageSize     int           `yaml:"manual_page_size"`
	FallbackSimilarity *float64      `yaml:"fallback_similarity"` // nil means 0.5; 0 is allowed
	TierTimeout        time.Duration `yaml:"tier_timeout"`
	BatchConcurrency   int           `yaml:"batch_concurrency"`
	BatchItemTimeout   time.Duration `yaml:"batch_item_timeout"`
}

// Fallback returns the configured keyword-match score, 0.5 when unset.
func (c SearchConfig) Fallback() float64 {
	if c.FallbackSimilarity == nil {
		return 0.5
	}
	return *c.FallbackSimilarity
}

// CacheConfig contains query embedding cache configuration
type CacheConfig struct {
	Type       string        `yaml:"type"` // none (default), memory, redis
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	KeyPrefix  string        `yaml:"key_prefix"`
}

// SnapshotConfig contains embedding snapshot storage configuration
type SnapshotConfig struct {
	Type     string `yaml:"type"` // memory (default), filesystem, s3
	BaseDir  string `yaml:"base_dir"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

// LoadOrDefault loads path, falling back to Default only when the file does
// not exist. Parse and validation errors are returned. The bool reports
// whether defaults were used.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Validate rejects settings the search pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Search.NumCandidates < 1 {
		return fmt.Errorf("search.num_candidates must be at least 1, got %d", c.Search.NumCandidates)
	}
	if f := c.Search.Fallback(); f < 0 || f > 1 {
		return fmt.Errorf("search.fallback_similarity must be within [0, 1], got %g", f)
	}
	if c.VectorStore.Metric != "cosine" {
		return fmt.Errorf("vector_store.metric %q is not supported (only cosine)", c.VectorStore.Metric)
	}
	return nil
}

// VectorStoreParams flattens the vector store section for the backend registry.
func (c *Config) VectorStoreParams() provider.Params {
	return provider.Params{
		"dsn":        c.VectorStore.DSN,
		"path":       c.VectorStore.Path,
		"address":    c.VectorStore.Address,
		"collection": c.VectorStore.Collection,
		"dimensions": strconv.Itoa(c.Embedding.Dimensions),
	}
}

// QuizStoreParams flattens the quiz store section for the backend registry.
func (c *Config) QuizStoreParams() provider.Params {
	return provider.Params{"dsn": c.QuizStore.DSN}
}

// CacheParams flattens the cache section for the backend registry.
func (c *Config) CacheParams() provider.Params {
	return provider.Params{
		"addr":        c.Cache.Addr,
		"password":    c.Cache.Password,
		"db":          strconv.Itoa(c.Cache.DB),
		"ttl":         c.Cache.TTL.String(),
		"max_entries": strconv.Itoa(c.Cache.MaxEntries),
		"key_prefix":  c.Cache.KeyPrefix,
	}
}

// SnapshotParams flattens the snapshot section for the backend registry.
func (c *Config) SnapshotParams() provider.Params {
	return provider.Params{
		"base_dir": c.Snapshot.BaseDir,
		"bucket":   c.Snapshot.Bucket,
		"region":   c.Snapshot.Region,
		"prefix":   c.Snapshot.Prefix,
		"endpoint": c.Snapshot.Endpoint,
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Embedding env overrides
	if v := os.Getenv("EMBEDDING_ENDPOINT"); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	// Store env overrides
	if v := os.Getenv("VECTOR_STORE_DSN"); v != "" {
		cfg.VectorStore.DSN = v
		cfg.VectorStore.Type = "postgres"
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		cfg.VectorStore.Address = v
		cfg.VectorStore.Type = "milvus"
	}
	if v := os.Getenv("QUIZ_STORE_DSN"); v != "" {
		cfg.QuizStore.DSN = v
		cfg.QuizStore.Type = "postgres"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Type = "redis"
	}
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	applyEmbeddingDefaults(&cfg.Embedding)
	applyVectorStoreDefaults(&cfg.VectorStore)
	if cfg.QuizStore.Type == "" {
		cfg.QuizStore.Type = "memory"
	}
	applySearchDefaults(&cfg.Search)
	applyCacheDefaults(&cfg.Cache)
	if cfg.Snapshot.Type == "" {
		cfg.Snapshot.Type = "memory"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyEmbeddingDefaults(cfg *EmbeddingConfig) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 768
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
}

func applyVectorStoreDefaults(cfg *VectorStoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Collection == "" {
		cfg.Collection = "quiz_embeddings"
	}
	if cfg.Metric == "" {
		cfg.Metric = "cosine"
	}
	if cfg.Path == "" {
		switch cfg.Type {
		case "sqlite":
			cfg.Path = "quizsearch.db"
		case "bolt":
			cfg.Path = "quizsearch.bolt"
		}
	}
}

func applySearchDefaults(cfg *SearchConfig) {
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit == 0 {
		cfg.MaxLimit = 100
	}
	if cfg.NumCandidates == 0 {
		cfg.NumCandidates = 200
	}
	if cfg.ManualScanLimit == 0 {
		cfg.ManualScanLimit = 10000
	}
	if cfg.ManualPageSize == 0 {
		cfg.ManualPageSize = 500
	}
	if cfg.FallbackSimilarity == nil {
		v := 0.5
		cfg.FallbackSimilarity = &v
	}
	if cfg.TierTimeout == 0 {
		cfg.TierTimeout = 5 * time.Second
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = 4
	}
	if cfg.BatchItemTimeout == 0 {
		cfg.BatchItemTimeout = 30 * time.Second
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "quizsearch:qvec:"
	}
}
