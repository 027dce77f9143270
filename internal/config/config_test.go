package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AISAAS_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.AppPort)
	}
	if cfg.Generation.PollInterval != 5*time.Second {
		t.Fatalf("expected 5s poll interval got %v", cfg.Generation.PollInterval)
	}
	if cfg.Generation.MaxWait != 10*time.Minute {
		t.Fatalf("expected 10m max wait got %v", cfg.Generation.MaxWait)
	}
	if cfg.Storage.Backend != "local" {
		t.Fatalf("expected local storage backend got %q", cfg.Storage.Backend)
	}
	if cfg.Admin.Email != "admin@example.com" {
		t.Fatalf("unexpected admin email %q", cfg.Admin.Email)
	}
}

func TestLoadFileWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aisaas.toml")
	contents := `
port = 9090
log_level = "debug"

[generation]
poll_interval = "2s"
max_wait = "3m"

[storage]
backend = "gcs"

[gcs]
bucket = "videos-bucket"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AISAAS_CONFIG_FILE", path)
	t.Setenv("AISAAS_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 7070 {
		t.Fatalf("expected env override port 7070 got %d", cfg.AppPort)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected file log level got %q", cfg.LogLevel)
	}
	if cfg.Generation.PollInterval != 2*time.Second || cfg.Generation.MaxWait != 3*time.Minute {
		t.Fatalf("unexpected generation config: %+v", cfg.Generation)
	}
	if cfg.Storage.Backend != "gcs" || cfg.GCS.Bucket != "videos-bucket" {
		t.Fatalf("unexpected storage config: %+v %+v", cfg.Storage, cfg.GCS)
	}
}

func TestLoadRejectsUnknownStorageBackend(t *testing.T) {
	t.Setenv("AISAAS_CONFIG_FILE", "")
	t.Setenv("AISAAS_STORAGE_BACKEND", "ftp")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}
