// Package cmd defines and implements the CLI commands for the signals executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/app"
	"github.com/JakeFAU/company-signals/internal/config"
	"github.com/JakeFAU/company-signals/internal/logging"
)

// buildApp is the application factory. It's a variable so tests can inject
// collaborators.
var buildApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.Build(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Scrape company websites and linked PDFs into sales-research signals.",
		Long: `signals reads a CSV of companies and their websites, fetches each homepage
and the PDFs it links to, asks a language model for outreach signals, and writes
the profiles and a per-site scraping log into a zip archive.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// setup loads configuration with the command's flag overrides applied and
// builds the process logger.
func setup(cmd *cobra.Command, overrides ...config.Override) (config.Config, *zap.Logger, error) {
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("read --config: %w", err)
	}
	cfg, err := config.Load(cfgFile, overrides...)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
