// Package cmd contains the ragserve command-line interface.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragserve/ragserve/internal/log"
)

var (
	configPath string
	serveAddr  string
	reindex    bool
	logLevel   string
	logJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "ragserve",
	Short: "OpenAI-compatible RAG gateway",
	Long: `ragserve is an HTTP gateway exposing an OpenAI-compatible
chat-completions API. Each configured "model" is a RAG configuration:
a local vector index built from a data directory, plus a multi-stage
prompt pipeline (main answer, quality gates with bounded fix retries,
rewrite passes).

Running ragserve without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to config file (default ./ragserve.{yaml,json})")
	pf.StringVar(&serveAddr, "addr", "", "bind address override (host:port)")
	pf.BoolVar(&reindex, "reindex", false, "rebuild all retrieval indexes before serving")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
}

// newLogger builds the process logger from the global flags.
func newLogger() log.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return log.New(log.Config{Level: level, JSON: logJSON})
}
