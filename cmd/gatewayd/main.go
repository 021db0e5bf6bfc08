package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/formlab/modelbridge/internal/gateway"
	"github.com/formlab/modelbridge/internal/observability"
	"github.com/formlab/modelbridge/internal/render"
)

func main() {
	observability.InitLogger("gatewayd")

	cfg, err := gateway.ParseEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse gateway config")
	}

	clientCfg := gateway.DefaultClientConfig()
	clientCfg.Address = cfg.BridgeAddr()
	clientCfg.CallTimeout = cfg.CallTimeout
	client, err := gateway.NewClient(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bridge client")
	}
	defer client.Close()

	var renderer *render.Client
	token, err := cfg.ResolveReplicateToken()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve render token")
	}
	if token != "" {
		renderer, err = render.NewClient(render.Config{Token: token})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create render client")
		}
		log.Info().Msg("rendering enabled")
	} else {
		log.Info().Msg("rendering disabled, no api token configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := gateway.NewServer(client, renderer)
	log.Info().Str("bridge", clientCfg.Address).Msg("gateway started")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
}
