package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TimKotowski/queuectl"
	"github.com/TimKotowski/queuectl/internal/api"
	"github.com/TimKotowski/queuectl/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, the maintenance scheduler and optional embedded workers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":4000", "HTTP listen address")
	serveCmd.Flags().Int("workers", 0, "embedded workers; 0 runs the API only")
	serveCmd.Flags().Int("concurrency", 1, "concurrent jobs per embedded worker")
	serveCmd.Flags().String("queue", queuectl.DefaultQueue, "queue processed by embedded workers")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("addr", serveCmd.Flags(), "addr")
	bindFlag("workers", serveCmd.Flags(), "workers")
	bindFlag("concurrency", serveCmd.Flags(), "concurrency")
	bindFlag("queue", serveCmd.Flags(), "queue")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(cmd *cobra.Command, _ []string) error {
	shutdownTracer, err := telemetry.InitTracer(cmd.Context(), "queuectl", viper.GetString("otel_endpoint"))
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	q, logger, err := openQueue(cmd.Context())
	if err != nil {
		return err
	}
	defer q.Close()

	q.StartMaintenance()

	runCtx, runCancel := context.WithCancel(cmd.Context())
	defer runCancel()

	// nil unless embedded workers run, so the select below ignores it.
	var poolDone chan error
	if workers := viper.GetInt("workers"); workers > 0 {
		pool, err := queuectl.NewPool(q, queuectl.PoolConfig{
			Workers:     workers,
			Concurrency: viper.GetInt("concurrency"),
			Queue:       viper.GetString("queue"),
		})
		if err != nil {
			return err
		}
		poolDone = make(chan error, 1)
		go func() { poolDone <- pool.Run(runCtx) }()
	}

	httpSrv := api.NewServer(viper.GetString("addr"), api.NewRouter(q, q.MetricsHandler(), logger))
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("queuectl HTTP starting", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
	case runErr = <-srvErr:
		logger.Error("HTTP server error", slog.String("error", runErr.Error()))
	case runErr = <-poolDone:
		if runErr != nil {
			logger.Error("worker pool stopped", slog.String("error", runErr.Error()))
		}
		poolDone = nil
	}

	logger.Info("shutting down...")
	runCancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", slog.String("error", err.Error()))
	}

	if poolDone != nil {
		if err := <-poolDone; err != nil && runErr == nil {
			runErr = err
		}
	}

	logger.Info("stopped")
	return runErr
}
