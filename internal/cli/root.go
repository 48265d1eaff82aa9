package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/veriforge/internal/config"
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "veriforge",
		Short:   "On-chain bytecode verification against source builds",
		Long:    `Veriforge resolves deployed contracts to source repositories, rebuilds them with Foundry, and compares the on-chain bytecode against the compiled artifacts.`,
		Version: version,
	}

	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createMappingCmd())
	rootCmd.AddCommand(createChangedCmd())
	rootCmd.AddCommand(createReportCmd())
	rootCmd.AddCommand(createServeCmd())

	return rootCmd.Execute()
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
