package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
	StorageBoth   = "both"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	Query       string        `yaml:"query"`
	TargetItems int           `yaml:"target_items"`
	BatchSize   int           `yaml:"batch_size"`
	Timeout     time.Duration `yaml:"timeout"` // 0 disables the per-request timeout
	UserAgent   string        `yaml:"user_agent"`
	Storage     string        `yaml:"storage"` // sqlite, file or both
	DBPath      string        `yaml:"db_path"`
	OutputDir   string        `yaml:"output_dir"`
	Verbose     bool          `yaml:"verbose"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// DefaultConfig returns the defaults for the freeimages.com search target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://www.freeimages.com",
		Query:       "dog",
		TargetItems: 1000,
		BatchSize:   25,
		Timeout:     0,
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Storage:     StorageSQLite,
		DBPath:      "data.sqlite3",
		OutputDir:   ".",
		Verbose:     false,
	}
}

// LoadFile overlays the YAML file at path on top of DefaultConfig.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if strings.TrimSpace(c.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if c.TargetItems <= 0 {
		return fmt.Errorf("target items must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	switch c.Storage {
	case StorageSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db path cannot be empty for sqlite storage")
		}
	case StorageFile:
		if c.OutputDir == "" {
			return fmt.Errorf("output dir cannot be empty for file storage")
		}
	case StorageBoth:
		if c.DBPath == "" || c.OutputDir == "" {
			return fmt.Errorf("db path and output dir are both required for %s storage", StorageBoth)
		}
	default:
		return fmt.Errorf("storage must be %s, %s or %s", StorageSQLite, StorageFile, StorageBoth)
	}

	return nil
}

// EnvString returns the value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}
