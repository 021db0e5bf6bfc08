package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/formlab/modelbridge/internal/bridge"
	"github.com/formlab/modelbridge/internal/commands"
	"github.com/formlab/modelbridge/internal/config"
	"github.com/formlab/modelbridge/internal/host"
	"github.com/formlab/modelbridge/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	observability.InitLogger("bridged")
	observability.RegisterMetrics()

	cfg, err := config.LoadBridgeConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load bridge config")
	}
	if *configPath != "" {
		log.Info().Str("path", *configPath).Msg("loaded bridge config")
	}

	doc := host.NewDocument()
	reg := commands.NewRegistry(doc)

	b := bridge.New(bridge.Config{
		ListenAddr: cfg.ListenAddr,
		TickBatch:  cfg.TickBatch,
	}, reg)
	if err := b.Start(); err != nil {
		log.Fatal().Err(err).Msg("bridge failed to start")
	}
	defer b.Stop()
	log.Info().Str("addr", b.Addr().String()).Int("commands", reg.Len()).Msg("bridge listening")

	// The loop stands in for the host application's cooperative turn;
	// queued commands only run inside it.
	loop := host.NewLoop(time.Duration(cfg.TickIntervalMS) * time.Millisecond)
	loop.OnTurn(b.Tick)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		transport := bridge.NewHTTPTransport(b, cfg.CorsOrigins)
		go func() {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("http transport listening")
			if err := transport.Serve(cfg.HTTPAddr); err != nil {
				log.Error().Err(err).Msg("http transport stopped")
			}
		}()
	}

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("host loop stopped")
	}
	log.Info().Uint64("turns", loop.Turns()).Msg("bridged shut down")
}
