// Package config loads pipeline configuration from a YAML file with
// environment variable overrides. Secrets (the storage DSN) may come from
// the environment only.
package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds everything one ingestion run needs. Values come from a YAML
// file (default config.yaml) with environment variables overriding, the DSN
// from the environment when unset in YAML.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Source  SourceConfig  `yaml:"source"`
	Filter  FilterConfig  `yaml:"filter"`

	// SchemaPath points at the inferred target-schema artifact
	// (table -> columns JSON) produced by cmd/infer.
	SchemaPath string `yaml:"schema_path" env:"SCHEMA_PATH" env-default:"schema.json"`

	// ChunkSize bounds rows per bulk insert.
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE" env-default:"10000"`
}

// StorageConfig selects and connects the destination store.
type StorageConfig struct {
	// Kind is a registered backend: postgres, sqlite, or mssql.
	Kind string `yaml:"kind" env:"STORAGE_KIND" env-default:"postgres"`
	DSN  string `yaml:"dsn" env:"STORAGE_DSN"`
}

// SourceConfig describes where raw extract files live.
type SourceConfig struct {
	// BasePath is the directory holding per-system folders.
	BasePath string `yaml:"base_path" env:"SOURCE_BASE_PATH" env-default:"."`

	// SystemsStr is a comma-separated list of source-system prefixes,
	// e.g. "RD,SP". Parsed into Systems at load time.
	SystemsStr string   `yaml:"systems" env:"SOURCE_SYSTEMS"`
	Systems    []string `yaml:"-"`

	// FileExt filters discovered files.
	FileExt string `yaml:"file_ext" env:"SOURCE_FILE_EXT" env-default:".csv"`
}

// FilterConfig configures the retained-entity allow list.
type FilterConfig struct {
	// AllowlistPath is a file of identifiers, one per line; empty disables
	// filtering.
	AllowlistPath string `yaml:"allowlist_path" env:"FILTER_ALLOWLIST_PATH"`

	// AllowColumn is the column matched against the allow list.
	AllowColumn string `yaml:"allow_column" env:"FILTER_ALLOW_COLUMN" env-default:"cnes"`
}

// Load reads path (or config.yaml when empty) and applies environment
// overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	cfg := &Config{}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv builds a Config from environment variables alone, for deployments
// without a config file.
func LoadEnv() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	c.Source.Systems = splitCSV(c.Source.SystemsStr)

	if c.Storage.DSN == "" {
		return fmt.Errorf("storage dsn is required (storage.dsn or STORAGE_DSN)")
	}
	if len(c.Source.Systems) == 0 {
		return fmt.Errorf("at least one source system is required (source.systems or SOURCE_SYSTEMS)")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if !strings.HasPrefix(c.Source.FileExt, ".") {
		c.Source.FileExt = "." + c.Source.FileExt
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
