package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/linkhub/pkg/app"
	"github.com/urmzd/linkhub/pkg/config"
	linkhubmcp "github.com/urmzd/linkhub/pkg/mcp"
)

func main() {
	cfg, err := config.Parse("linkhub-mcp", os.Args[1:])
	// Logging must go to stderr, stdout is the MCP transport
	app.SetupLogging(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	a, err := app.Open(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down cleanly")
		}
	}()

	mcpServer := linkhubmcp.NewServer(a.House, a.Validator, a.History())

	log.Info().Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Error().Err(err).Msg("MCP server failed")
	}
}
