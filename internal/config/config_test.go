package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/formlab/modelbridge/internal/testutil/testlog"
)

func TestLoadBridgeConfigDefaults(t *testing.T) {
	testlog.Start(t)

	cfg, err := LoadBridgeConfig("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.ListenAddr != "localhost:9876" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.TickIntervalMS != 20 {
		t.Fatalf("unexpected tick interval: %d", cfg.TickIntervalMS)
	}
	if cfg.TickBatch != 8 {
		t.Fatalf("unexpected tick batch: %d", cfg.TickBatch)
	}
}

func TestLoadBridgeConfigFromToml(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	content := `
listen_addr = "127.0.0.1:9999"
http_addr = "127.0.0.1:8080"
cors_origins = ["http://localhost:5173"]
tick_interval_ms = 50
tick_batch = 4
	`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadBridgeConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9999" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Fatalf("unexpected http addr: %q", cfg.HTTPAddr)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors origins: %v", cfg.CorsOrigins)
	}
	if cfg.TickIntervalMS != 50 || cfg.TickBatch != 4 {
		t.Fatalf("unexpected tick settings: %d/%d", cfg.TickIntervalMS, cfg.TickBatch)
	}
}

func TestLoadBridgeConfigEnvOverrides(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvBridgeHost, "0.0.0.0")
	t.Setenv(EnvBridgePort, "7777")

	cfg, err := LoadBridgeConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:7777" {
		t.Fatalf("env override not applied: %q", cfg.ListenAddr)
	}
}

func TestLoadBridgeConfigRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`listen_addr = "no-port-here"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadBridgeConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("bad addr accepted: %v", err)
	}

	if err := os.WriteFile(path, []byte(`tick_interval_ms = -5`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadBridgeConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("negative interval accepted: %v", err)
	}
}

func TestLoadBridgeConfigMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadBridgeConfig("/nonexistent/config.toml"); err == nil {
		t.Fatalf("missing file accepted")
	}
}
