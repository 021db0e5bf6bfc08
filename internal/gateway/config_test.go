package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/formlab/modelbridge/internal/testutil/testlog"
)

func TestParseEnvDefaults(t *testing.T) {
	testlog.Start(t)

	cfg, err := ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.BridgeAddr() != "localhost:9876" {
		t.Fatalf("unexpected bridge addr: %q", cfg.BridgeAddr())
	}
	if cfg.CallTimeout.String() != "15s" {
		t.Fatalf("unexpected call timeout: %s", cfg.CallTimeout)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	testlog.Start(t)
	t.Setenv("MODELBRIDGE_HOST", "10.0.0.5")
	t.Setenv("MODELBRIDGE_PORT", "7000")
	t.Setenv("MODELBRIDGE_CALL_TIMEOUT", "3s")

	cfg, err := ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.BridgeAddr() != "10.0.0.5:7000" {
		t.Fatalf("unexpected bridge addr: %q", cfg.BridgeAddr())
	}
	if cfg.CallTimeout.String() != "3s" {
		t.Fatalf("unexpected call timeout: %s", cfg.CallTimeout)
	}
}

func TestResolveReplicateTokenPrefersEnv(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("file-token\n"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	cfg := Config{ReplicateToken: "env-token", ReplicateTokenFile: path}
	token, err := cfg.ResolveReplicateToken()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if token != "env-token" {
		t.Fatalf("env token not preferred: %q", token)
	}
}

func TestResolveReplicateTokenFromFile(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("  file-token \n"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	cfg := Config{ReplicateTokenFile: path}
	token, err := cfg.ResolveReplicateToken()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if token != "file-token" {
		t.Fatalf("token not trimmed: %q", token)
	}
}

func TestResolveReplicateTokenErrors(t *testing.T) {
	testlog.Start(t)

	if _, err := (Config{ReplicateTokenFile: "/nonexistent/token"}).ResolveReplicateToken(); err == nil {
		t.Fatalf("missing token file accepted")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	if _, err := (Config{ReplicateTokenFile: path}).ResolveReplicateToken(); err == nil {
		t.Fatalf("empty token file accepted")
	}

	token, err := (Config{}).ResolveReplicateToken()
	if err != nil || token != "" {
		t.Fatalf("unconfigured token must resolve empty: %q %v", token, err)
	}
}
