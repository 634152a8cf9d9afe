package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/amm/internal/config"
	"github.com/cloo-solutions/amm/internal/jobs"
	"github.com/cloo-solutions/amm/internal/logging"
	"github.com/cloo-solutions/amm/internal/server"
	"github.com/cloo-solutions/amm/internal/telemetry"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Load a design, index its knowledge sources and serve queries over HTTP",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides AMM_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

// loadConfig reads the environment, applies the persistent --design flag and
// installs the configured logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if design, _ := cmd.Flags().GetString("design"); design != "" {
		cfg.DesignPath = design
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	if err := logging.Configure(logging.Config{
		Level:  level,
		Format: logging.Format(cfg.LogFormat),
	}); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := logging.Default()

	if cfg.HasSentry() {
		// 10% sampling outside development
		sampleRate := 0.1
		if cfg.SentryEnvironment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			logger.Warn("continuing without tracing", "error", err)
		} else {
			defer shutdownTelemetry()
			logger.Info("sentry tracing enabled", "environment", cfg.SentryEnvironment, "sample_rate", sampleRate)
		}
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	rt, err := NewRuntime(ctx, cfg, RuntimeOptions{Migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("failed to close runtime", "error", err)
		}
	}()

	var retention *jobs.Worker
	if rt.Design.AdaptiveMemory.Enabled && cfg.RetentionScan > 0 {
		retention = jobs.NewWorker("retention", jobs.NewRetentionScanner(rt.Engine), cfg.RetentionScan)
		go retention.Start(ctx)
	}

	if cfg.APIToken == "" {
		logger.Warn("AMM_API_TOKEN not set, API is unauthenticated")
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(server.RouterConfig{
			Engine:   rt.Engine,
			APIToken: cfg.APIToken,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "design", rt.Design.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	if retention != nil {
		retention.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
