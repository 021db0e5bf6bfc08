package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	EnvBridgeHost = "MODELBRIDGE_HOST"
	EnvBridgePort = "MODELBRIDGE_PORT"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// BridgeConfig configures the host-side runtime: the TCP bridge endpoint,
// the optional HTTP transport, and the host loop cadence.
type BridgeConfig struct {
	ListenAddr     string   `toml:"listen_addr"`
	HTTPAddr       string   `toml:"http_addr"`
	CorsOrigins    []string `toml:"cors_origins"`
	TickIntervalMS int      `toml:"tick_interval_ms"`
	TickBatch      int      `toml:"tick_batch"`
}

// DefaultBridgeConfig returns runtime defaults with env overrides applied.
func DefaultBridgeConfig() BridgeConfig {
	cfg := BridgeConfig{
		ListenAddr:     "localhost:9876",
		TickIntervalMS: 20,
		TickBatch:      8,
	}
	applyEnvOverrides(&cfg)
	return cfg
}

// LoadBridgeConfig reads a TOML config file, fills defaults, applies env
// overrides, and validates. An empty path yields the defaults.
func LoadBridgeConfig(path string) (BridgeConfig, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultBridgeConfig(), nil
	}
	var cfg BridgeConfig
	if err := loadToml(path, &cfg); err != nil {
		return BridgeConfig{}, err
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "localhost:9876"
	}
	if cfg.TickIntervalMS == 0 {
		cfg.TickIntervalMS = 20
	}
	if cfg.TickBatch == 0 {
		cfg.TickBatch = 8
	}
	applyEnvOverrides(&cfg)
	if err := ValidateBridgeConfig(cfg); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

// ValidateBridgeConfig rejects unusable runtime settings.
func ValidateBridgeConfig(cfg BridgeConfig) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: listen_addr %q: %v", ErrInvalidConfig, cfg.ListenAddr, err)
	}
	if cfg.TickIntervalMS <= 0 {
		return fmt.Errorf("%w: tick_interval_ms must be positive", ErrInvalidConfig)
	}
	if cfg.TickBatch <= 0 {
		return fmt.Errorf("%w: tick_batch must be positive", ErrInvalidConfig)
	}
	return nil
}

func applyEnvOverrides(cfg *BridgeConfig) {
	host, port, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return
	}
	if v := strings.TrimSpace(os.Getenv(EnvBridgeHost)); v != "" {
		host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBridgePort)); v != "" {
		port = v
	}
	cfg.ListenAddr = net.JoinHostPort(host, port)
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
