package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwise1/outpost/config"
	deps "github.com/bwise1/outpost/internal/debs"
	api "github.com/bwise1/outpost/internal/http/rest"
	"github.com/bwise1/outpost/internal/logging"
	"github.com/rs/zerolog/log"
)

const (
	allowConnectionsAfterShutdown = 1 * time.Second
)

func main() {
	cfg := config.New()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.JwtSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dependencies, err := deps.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dependencies")
	}

	a := &api.API{
		Config: cfg,
		Deps:   dependencies,
	}

	go dependencies.WebSocket.Run(ctx)
	if dependencies.Labeler != nil {
		go dependencies.Labeler.Run(ctx)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.Serve()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	case <-ctx.Done():
		log.Info().Dur("grace", allowConnectionsAfterShutdown).Msg("request to shutdown server")
		time.Sleep(allowConnectionsAfterShutdown)
	}

	log.Info().Msg("shutting down server...")
	if err := a.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	dependencies.Close()
	log.Info().Msg("database connections closed")
}
