package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragserve/ragserve/api"
	"github.com/ragserve/ragserve/internal/app"
	"github.com/ragserve/ragserve/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RAG gateway HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe loads configuration, builds the application, and serves until
// interrupted.
func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting ragserve",
		"version", Version,
		"provider", cfg.Provider,
		"configurations", len(cfg.Configurations))

	a, err := app.Setup(ctx, cfg, logger, app.Options{Reindex: reindex})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr()
	}

	server := api.NewServer(cfg, a.Registry, logger.With("component", "api"))
	return server.Run(ctx, addr)
}
