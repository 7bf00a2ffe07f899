package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"headswap/internal/markup"
	"headswap/pkg/selector"
)

type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
	// TTL is the lifetime of cache entries in seconds; 0 keeps them forever.
	TTL int `json:"ttl" yaml:"ttl"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type Config struct {
	InputDir   string      `json:"input_dir" yaml:"input_dir"`
	HeaderFile string      `json:"header_file" yaml:"header_file"`
	Selector   string      `json:"selector" yaml:"selector"`
	Extensions []string    `json:"extensions" yaml:"extensions"`
	Format     string      `json:"format" yaml:"format"`
	BackupDir  string      `json:"backup_dir" yaml:"backup_dir"`
	FailFast   bool        `json:"fail_fast" yaml:"fail_fast"`
	DryRun     bool        `json:"dry_run" yaml:"dry_run"`
	Redis      RedisConfig `json:"redis" yaml:"redis"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var config Config
	setDefaults(&config)
	return &config
}

// Load reads a JSON or YAML (.yaml, .yml) configuration file, applies
// defaults and validates it.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	setDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills unset fields and normalises extensions. Call it after
// overriding fields loaded from a file.
func (c *Config) ApplyDefaults() {
	setDefaults(c)
}

// Validate checks a fully defaulted configuration.
func (c *Config) Validate() error {
	return validateConfig(c)
}

func validateConfig(config *Config) error {
	if config.InputDir == "" {
		return fmt.Errorf("input_dir is required")
	}

	if config.HeaderFile == "" {
		return fmt.Errorf("header_file is required")
	}

	if _, err := selector.Parse(config.Selector); err != nil {
		return fmt.Errorf("selector: %w", err)
	}

	if _, err := markup.ParseFormat(config.Format); err != nil {
		return fmt.Errorf("format: %w", err)
	}

	if len(config.Extensions) == 0 {
		return fmt.Errorf("at least one extension must be specified")
	}
	for i, ext := range config.Extensions {
		if ext == "" || ext == "." {
			return fmt.Errorf("extensions[%d]: empty extension", i)
		}
		if strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("extensions[%d]: invalid extension '%s'", i, ext)
		}
	}

	if config.BackupDir != "" {
		in, err := filepath.Abs(config.InputDir)
		if err != nil {
			return fmt.Errorf("input_dir: %w", err)
		}
		backup, err := filepath.Abs(config.BackupDir)
		if err != nil {
			return fmt.Errorf("backup_dir: %w", err)
		}
		if rel, err := filepath.Rel(in, backup); err == nil && (rel == "." || !strings.HasPrefix(rel, "..")) {
			return fmt.Errorf("backup_dir must not be inside input_dir")
		}
	}

	if config.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}
	if config.Redis.TTL < 0 {
		return fmt.Errorf("redis.ttl must not be negative")
	}

	return nil
}

func setDefaults(config *Config) {
	if config.InputDir == "" {
		config.InputDir = "input"
	}
	if config.HeaderFile == "" {
		config.HeaderFile = "header.html"
	}
	if config.Selector == "" {
		config.Selector = "head"
	}
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".htm"}
	}
	for i, ext := range config.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			config.Extensions[i] = "." + ext
		}
	}
	if config.Format == "" {
		config.Format = "auto"
	}
	if config.Redis.KeyPrefix == "" {
		config.Redis.KeyPrefix = "headswap:"
	}
}

// ParsedSelector returns the compiled selector. Validate must have passed.
func (c *Config) ParsedSelector() selector.Selector {
	sel, err := selector.Parse(c.Selector)
	if err != nil {
		panic(fmt.Sprintf("config: selector not validated: %v", err))
	}
	return sel
}

// ParsedFormat returns the compiled format. Validate must have passed.
func (c *Config) ParsedFormat() markup.Format {
	f, err := markup.ParseFormat(c.Format)
	if err != nil {
		panic(fmt.Sprintf("config: format not validated: %v", err))
	}
	return f
}

// MatchesExtension reports whether path ends in one of the configured
// extensions, ignoring case.
func (c *Config) MatchesExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range c.Extensions {
		if strings.ToLower(want) == ext {
			return true
		}
	}
	return false
}

// CacheTTL returns the Redis entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTL) * time.Second
}
