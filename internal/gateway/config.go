package gateway

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	EnvReplicateToken     = "REPLICATE_API_TOKEN"
	EnvReplicateTokenFile = "REPLICATE_TOKEN_FILE"
)

// Config is the gateway's environment-driven configuration. The gateway
// carries no state beyond the bridge endpoint and its call bound.
type Config struct {
	BridgeHost  string        `env:"MODELBRIDGE_HOST" envDefault:"localhost"`
	BridgePort  int           `env:"MODELBRIDGE_PORT" envDefault:"9876"`
	CallTimeout time.Duration `env:"MODELBRIDGE_CALL_TIMEOUT" envDefault:"15s"`

	// Replicate credential for the render collaborator. The token value is
	// never logged and never appears in any envelope.
	ReplicateToken     string `env:"REPLICATE_API_TOKEN"`
	ReplicateTokenFile string `env:"REPLICATE_TOKEN_FILE"`
}

// ParseEnv loads gateway configuration from environment variables.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// BridgeAddr returns the host:port of the bridge endpoint.
func (c Config) BridgeAddr() string {
	return net.JoinHostPort(c.BridgeHost, fmt.Sprintf("%d", c.BridgePort))
}

// ResolveReplicateToken returns the API credential, preferring the env
// value over the untracked token file.
func (c Config) ResolveReplicateToken() (string, error) {
	if token := strings.TrimSpace(c.ReplicateToken); token != "" {
		return token, nil
	}
	if path := strings.TrimSpace(c.ReplicateTokenFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("token file %s is empty", path)
		}
		return token, nil
	}
	return "", nil
}
