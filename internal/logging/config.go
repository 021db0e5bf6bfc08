package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "MODELBRIDGE_LOG_LEVEL"
	EnvLogTimestamp = "MODELBRIDGE_LOG_TIMESTAMP"
	EnvLogNoColor   = "MODELBRIDGE_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

type config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure applies the profile defaults plus env overrides to the global
// logger. First caller wins; later calls are no-ops.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)

		zerolog.SetGlobalLevel(cfg.Level)
		writer := zerolog.ConsoleWriter{
			Out:     os.Stderr,
			NoColor: cfg.NoColor,
		}
		if cfg.Timestamp {
			writer.TimeFormat = time.RFC3339
		}
		ctx := zerolog.New(writer).With()
		if cfg.Timestamp {
			ctx = ctx.Timestamp()
		}
		log.Logger = ctx.Logger()
	})
}

func defaultConfig(profile Profile) config {
	switch profile {
	case ProfileTest:
		return config{Level: zerolog.DebugLevel, Timestamp: false, NoColor: true}
	default:
		return config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(cfg *config) {
	if raw, ok := os.LookupEnv(EnvLogLevel); ok {
		if level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw))); err == nil {
			cfg.Level = level
		}
	}
	if raw, ok := os.LookupEnv(EnvLogTimestamp); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Timestamp = v
		}
	}
	if raw, ok := os.LookupEnv(EnvLogNoColor); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.NoColor = v
		}
	}
}
