package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"FinProfile/internal/di"
	"FinProfile/pkg/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// serveCmd runs the streaming service until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the profile service",
	Long: `Connect to the configured tick source, maintain profiles for every
subscribed symbol and serve the query API until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	log.Info().
		Str("env", cfg.Environment).
		Str("source", cfg.Source.Type).
		Str("registry", cfg.Registry.Store).
		Msg("starting finprofile")

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
