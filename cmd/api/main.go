package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/linkhub/pkg/api"
	"github.com/urmzd/linkhub/pkg/app"
	"github.com/urmzd/linkhub/pkg/config"

	_ "github.com/urmzd/linkhub/docs"
)

// @title           Linkhub API
// @version         1.0
// @description     REST API for managing Insteon links and bulk jobs

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	cfg, err := config.Parse("linkhub-api", os.Args[1:])
	app.SetupLogging(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}

	router := api.NewRouter(a.House, a.Broker, a.Validator, a.History())
	srv := &http.Server{
		Addr:              a.Settings.APIAddress(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", srv.Addr).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop API server")
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down cleanly")
	}
}
