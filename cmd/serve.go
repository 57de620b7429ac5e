package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/api"
	"github.com/JakeFAU/company-signals/internal/config"
)

// newServeCmd creates the 'serve' subcommand, which exposes runs over HTTP.
func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Starts the HTTP API. POST a target CSV to /v1/runs to scrape it and receive
the archive. Health probes live at /healthz and /readyz, metrics at /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var overrides []config.Override
			if cmd.Flags().Changed("port") {
				overrides = append(overrides, func(c *config.Config) { c.Server.Port = port })
			}
			return serve(cmd, overrides)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port")
	return cmd
}

func serve(cmd *cobra.Command, overrides []config.Override) error {
	cfg, logger, err := setup(cmd, overrides...)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	apiServer := api.NewServer(a, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	timeout := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
