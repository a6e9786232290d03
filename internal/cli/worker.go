package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TimKotowski/queuectl"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run workers",
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a worker pool; stops on SIGINT or SIGTERM after in-flight jobs finish",
	Args:  cobra.NoArgs,
	RunE:  runWorkerStart,
}

func init() {
	workerStartCmd.Flags().Int("count", 1, "number of workers")
	workerStartCmd.Flags().Int("concurrency", 1, "concurrent jobs per worker")
	workerStartCmd.Flags().String("queue", queuectl.DefaultQueue, "queue to process")

	workerCmd.AddCommand(workerStartCmd)
}

func runWorkerStart(cmd *cobra.Command, _ []string) error {
	count, _ := cmd.Flags().GetInt("count")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	queue, _ := cmd.Flags().GetString("queue")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, logger, err := openQueue(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	defer q.Close()

	pool, err := queuectl.NewPool(q, queuectl.PoolConfig{
		Workers:     count,
		Concurrency: concurrency,
		Queue:       queue,
	})
	if err != nil {
		return err
	}

	err = pool.Run(ctx)
	logger.Info("workers stopped")
	return err
}
