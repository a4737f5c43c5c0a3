package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/kiranaconnect/kirana/internal/api"
	"github.com/kiranaconnect/kirana/internal/build"
	"github.com/kiranaconnect/kirana/internal/config"
	"github.com/kiranaconnect/kirana/internal/logger"
	"github.com/kiranaconnect/kirana/internal/metrics"
	"github.com/kiranaconnect/kirana/internal/reminder"
	"github.com/kiranaconnect/kirana/internal/server"
	"github.com/kiranaconnect/kirana/internal/service"
	"github.com/kiranaconnect/kirana/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd returns the "serve" subcommand that runs the API, the reminder
// timers and the periodic sweeper.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reminder service and its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			logFile := filepath.Join(cfg.LogDir(), "system.log")
			printBanner(cfg, logFile)

			if err := runServe(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "An error occurred. Please check the logs at: %s\n", logFile)
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	return cmd
}

func runServe(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sysLogger, logCloser, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logCloser.Close() //nolint:errcheck

	sysLogger.Info("kirana starting",
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.String("store", cfg.StoreDriver),
		slog.String("llm", cfg.LLMProvider),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			sysLogger.Warn("flushing traces", "error", err)
		}
	}()

	a, err := buildApp(ctx, cfg, sysLogger)
	if err != nil {
		sysLogger.Error("startup failed", "error", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			sysLogger.Warn("closing resources", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, a.scheduler.Registry().Len)
	a.bus.Subscribe(m.Handle)

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("re-arming reminders: %w", err)
	}
	if err := a.sweeper.Start(); err != nil {
		return err
	}
	if cfg.CopyFile != "" {
		go func() {
			if err := reminder.WatchCopy(ctx, cfg.CopyFile, a.generator.SetCopy, sysLogger); err != nil {
				sysLogger.Warn("reminder copy hot reload disabled", "error", err)
			}
		}()
	}

	cartSvc := service.NewCartService(a.store, a.scheduler, a.sweeper, nil, sysLogger.With("component", "cart"))
	sweepSvc := service.NewSweepService(a.sweeper, a.runs, sysLogger.With("component", "sweep"))

	apiSrv := api.New(cartSvc, sweepSvc, sysLogger)
	srv := server.New(apiSrv, server.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Gatherer:       reg,
	}, sysLogger)

	sysLogger.Info("server ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	runErr := srv.Run(ctx)

	// Timers and the sweeper are stopped before the store is closed.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := a.sweeper.Stop(); err != nil {
		sysLogger.Warn("stopping sweeper", "error", err)
	}
	if err := a.scheduler.Stop(stopCtx); err != nil {
		sysLogger.Warn("stopping reminder timers", "error", err)
	}
	sysLogger.Info("kirana stopped")
	return runErr
}
