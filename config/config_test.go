package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero target items",
			mutate: func(cfg *Config) {
				cfg.TargetItems = 0
			},
			wantErr: "target items",
		},
		{
			name: "negative batch size",
			mutate: func(cfg *Config) {
				cfg.BatchSize = -1
			},
			wantErr: "batch size",
		},
		{
			name: "blank query",
			mutate: func(cfg *Config) {
				cfg.Query = "   "
			},
			wantErr: "query",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "unknown storage",
			mutate: func(cfg *Config) {
				cfg.Storage = "mongo"
			},
			wantErr: "storage",
		},
		{
			name: "sqlite without db path",
			mutate: func(cfg *Config) {
				cfg.Storage = StorageSQLite
				cfg.DBPath = ""
			},
			wantErr: "db path",
		},
		{
			name: "file without output dir",
			mutate: func(cfg *Config) {
				cfg.Storage = StorageFile
				cfg.OutputDir = ""
			},
			wantErr: "output dir",
		},
		{
			name: "both without db path",
			mutate: func(cfg *Config) {
				cfg.Storage = StorageBoth
				cfg.DBPath = ""
			},
			wantErr: "db path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.yaml")
	body := "query: cat\ntarget_items: 120\nstorage: file\ntimeout: 5s\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Query != "cat" || cfg.TargetItems != 120 || cfg.Storage != StorageFile {
		t.Fatalf("unexpected overlay: %+v", cfg)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout=%v, want 5s", cfg.Timeout)
	}
	if cfg.BatchSize != 25 {
		t.Fatalf("batch size=%d, want default 25", cfg.BatchSize)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SCRAPER_TEST_ITEMS", " 42 ")
	n, ok, err := EnvInt("SCRAPER_TEST_ITEMS")
	if err != nil || !ok || n != 42 {
		t.Fatalf("EnvInt = %d, %v, %v; want 42, true, nil", n, ok, err)
	}

	t.Setenv("SCRAPER_TEST_ITEMS", "many")
	if _, _, err := EnvInt("SCRAPER_TEST_ITEMS"); err == nil {
		t.Fatalf("expected parse error")
	}

	if _, ok, err := EnvInt("SCRAPER_TEST_UNSET"); ok || err != nil {
		t.Fatalf("unset key should report not found")
	}
}
