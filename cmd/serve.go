package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"panelctl/internal/config"
	"panelctl/internal/reporting"
	"panelctl/internal/supervisor"
	"panelctl/pkg/logging"
)

// stopMargin is added to the shutdown grace so a forced kill can finish.
const stopMargin = 5 * time.Second

func newServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the backend and supervise it until interrupted",
		Long: `Starts the panel backend and keeps it running in the foreground.

The backend is started with uvicorn when possible and falls back to running
the entrypoint script directly. Lifecycle events are logged as they happen.
On SIGINT or SIGTERM the backend is asked to shut down gracefully and is
killed if it does not exit within the configured grace period.

If the backend exits on its own after becoming ready, serve exits too,
with an error when the exit code is non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9105")
	return cmd
}

// runServe starts the backend and blocks until ctx is done or the backend exits.
func runServe(ctx context.Context, cfg config.SupervisorConfig, metricsAddr string) error {
	bus := reporting.NewEventBus()
	defer bus.Close()

	reporter := reporting.NewConsoleReporter(bus, reporting.SeverityInfo)
	defer reporter.Close()

	opts := []supervisor.Option{supervisor.WithEventBus(bus)}
	if metricsAddr != "" {
		collector := supervisor.NewPrometheusMetricsCollector("")
		opts = append(opts, supervisor.WithMetricsCollector(collector))

		srv := startMetricsServer(metricsAddr, collector)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sup, err := supervisor.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	logging.Info("Serve", "Starting backend on %s:%d", cfg.BindHost(), cfg.Port)
	if err := sup.Start(ctx); err != nil {
		if ctx.Err() != nil {
			logging.Info("Serve", "Interrupted during startup")
			stopBackend(sup)
			return nil
		}
		return fmt.Errorf("failed to start backend: %w", err)
	}

	exited := subscribeExits(bus, sup.AttemptID())
	defer bus.Unsubscribe(exited)
	if sup.State() != supervisor.StateRunning {
		logging.Info("Serve", "Backend exited right after startup")
		return nil
	}

	logging.Info("Serve", "Backend running (pid %d, ready %s after spawn), press Ctrl+C to stop",
		sup.PID(), time.Since(sup.StartedAt()).Round(time.Millisecond))

	select {
	case <-ctx.Done():
		logging.Info("Serve", "Shutdown requested")
		stopBackend(sup)
		return nil
	case ev, ok := <-exited.Channel:
		if !ok {
			return nil
		}
		if e, isExit := ev.(*reporting.ExitedEvent); isExit && e.ExitCode != 0 {
			return fmt.Errorf("backend exited unexpectedly with code %d", e.ExitCode)
		}
		logging.Info("Serve", "Backend exited")
		return nil
	}
}

// subscribeExits delivers the exit of the worker started by one attempt.
func subscribeExits(bus reporting.EventBus, attemptID string) *reporting.EventSubscription {
	return bus.SubscribeChannel(reporting.CombineFilters(
		reporting.FilterByType(reporting.EventTypeExited),
		reporting.FilterByCorrelation(attemptID),
	), 1)
}

func stopBackend(sup *supervisor.Supervisor) {
	if started := sup.StartedAt(); !started.IsZero() {
		logging.Info("Serve", "Backend was up for %s", time.Since(started).Round(time.Second))
	}

	ctx, cancel := context.WithTimeout(context.Background(), sup.Config().Timeouts.ShutdownGrace+stopMargin)
	defer cancel()

	outcome, err := sup.Stop(ctx)
	if err != nil {
		logging.Error("Serve", err, "Failed to stop backend")
		return
	}
	logging.Info("Serve", "Backend stopped: %s", outcome)
}

func startMetricsServer(addr string, collector *supervisor.PrometheusMetricsCollector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("Metrics", "Serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics", err, "Metrics server stopped")
		}
	}()
	return srv
}
