// Package config provides configuration for the splitgraph tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"splitgraph/graph"
	"splitgraph/store"
)

const (
	DefaultShardThreshold = 4096
	DefaultStorePath      = "./splitgraph.db"
	DefaultCompression    = "default"
	DefaultLogLevel       = "info"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds tool configuration.
type Config struct {
	// ShardThreshold is the node capacity of each partition of new graphs.
	ShardThreshold int `yaml:"shard_threshold"`
	// StorePath is the SQLite database holding shards.
	StorePath string `yaml:"store_path"`
	// Compression is the zstd level for stored shards, or "none".
	Compression string `yaml:"compression"`
	// LogLevel is a zap level name.
	LogLevel string `yaml:"log_level"`
	// LogDevelopment switches to zap's console development logger.
	LogDevelopment bool `yaml:"log_development"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		ShardThreshold: DefaultShardThreshold,
		StorePath:      DefaultStorePath,
		Compression:    DefaultCompression,
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads the YAML file at path, when path is not empty, over the
// defaults and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ShardThreshold = getEnvInt("SPLITGRAPH_SHARD_THRESHOLD", c.ShardThreshold)
	c.StorePath = getEnv("SPLITGRAPH_STORE_PATH", c.StorePath)
	c.Compression = getEnv("SPLITGRAPH_COMPRESSION", c.Compression)
	c.LogLevel = getEnv("SPLITGRAPH_LOG_LEVEL", c.LogLevel)
	c.LogDevelopment = getEnvBool("SPLITGRAPH_LOG_DEV", c.LogDevelopment)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.ShardThreshold < 1 || c.ShardThreshold > graph.MaxThreshold {
		return fmt.Errorf("%w: shard_threshold %d not in [1, %d]", ErrInvalidConfig, c.ShardThreshold, graph.MaxThreshold)
	}
	if c.StorePath == "" {
		return fmt.Errorf("%w: store_path is empty", ErrInvalidConfig)
	}
	if !store.ValidCompression(c.Compression) {
		return fmt.Errorf("%w: compression %q", ErrInvalidConfig, c.Compression)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Logger builds the zap logger the config asks for.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
