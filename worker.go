package queuectl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/TimKotowski/queuectl/internal/executor"
)

// TimeoutTag prefixes last_error when a job was killed for exceeding its timeout.
const TimeoutTag = "TIMEOUT"

type PoolConfig struct {
	// Workers is the number of workers, each running Concurrency units.
	Workers     int
	Concurrency int
	Queue       string
}

// Pool runs Workers x Concurrency independent units against one queue.
// Units share nothing but the store, the atomic claim keeps them from
// running the same job twice.
type Pool struct {
	queue    *Queue
	executor executor.Executor
	conf     PoolConfig
	logger   *slog.Logger
}

func NewPool(q *Queue, conf PoolConfig) (*Pool, error) {
	if conf.Workers < 1 {
		return nil, &ValidationError{Field: "workers", Reason: "must be at least 1"}
	}
	if conf.Concurrency < 1 {
		return nil, &ValidationError{Field: "concurrency", Reason: "must be at least 1"}
	}
	if conf.Queue == "" {
		conf.Queue = DefaultQueue
	}

	return &Pool{
		queue:    q,
		executor: q.conf.Executor,
		conf:     conf,
		logger:   q.logger.With(slog.String("queue", conf.Queue)),
	}, nil
}

// Run blocks until ctx is cancelled and every unit has finished its in-flight job.
// A persistence failure in any unit stops the whole pool and is returned.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for w := range p.conf.Workers {
		workerID := uuid.NewString()
		for u := range p.conf.Concurrency {
			unit := &worker{
				id:       fmt.Sprintf("%s-%d", workerID, u),
				queue:    p.queue,
				executor: p.executor,
				name:     p.conf.Queue,
				logger: p.logger.With(
					slog.String("worker_id", fmt.Sprintf("%s-%d", workerID, u)),
					slog.Int("worker", w),
				),
			}
			g.Go(func() error {
				return unit.start(gctx)
			})
		}
	}

	p.logger.Info("worker pool started",
		slog.Int("workers", p.conf.Workers),
		slog.Int("concurrency", p.conf.Concurrency),
	)

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("worker pool stopped", slog.String("error", err.Error()))
		return err
	}

	p.logger.Info("worker pool stopped")

	return nil
}

// worker is one execution unit: claim, run, report, repeat.
type worker struct {
	id       string
	name     string
	queue    *Queue
	executor executor.Executor
	logger   *slog.Logger
}

func (w *worker) start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := w.queue.claim(ctx, w.id, w.name)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if job == nil {
			if err := w.idle(ctx); err != nil {
				return err
			}
			continue
		}

		// The claimed job is drained even when shutdown begins mid-run.
		if err := w.process(context.WithoutCancel(ctx), job); err != nil {
			return err
		}
	}
}

func (w *worker) idle(ctx context.Context) error {
	interval, err := w.queue.pollInterval(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	select {
	case <-ctx.Done():
	case <-w.queue.clock.After(interval):
	}

	return nil
}

func (w *worker) process(ctx context.Context, job *Job) error {
	ctx, span := otel.Tracer("queuectl/worker").Start(ctx, "worker.process_job",
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.queue", job.Queue),
		attribute.Int("job.attempt", job.Attempts+1),
		attribute.String("worker.id", w.id),
	)

	log := w.logger.With(
		slog.String("job_id", job.ID),
		slog.Int("attempt", job.Attempts+1),
	)

	timeout := w.queue.conf.DefaultTimeout
	if job.TimeoutSec != nil {
		timeout = time.Duration(*job.TimeoutSec) * time.Second
	}

	start := w.queue.clock.Now()
	res := w.executor.Execute(ctx, job.Command, timeout)
	attempt := Attempt{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: w.queue.clock.Since(start),
	}

	if res.Succeeded() {
		if err := w.queue.complete(ctx, job, attempt); err != nil {
			span.RecordError(err)
			return w.reportError(log, err)
		}
		span.SetStatus(codes.Ok, "")
		log.Info("job completed", slog.Duration("runtime", attempt.Duration))
		return nil
	}

	reason := failureReason(res, timeout)
	span.SetStatus(codes.Error, reason)

	outcome, err := w.queue.fail(ctx, job, reason, attempt)
	if err != nil {
		span.RecordError(err)
		return w.reportError(log, err)
	}

	log.Warn("job failed",
		slog.String("outcome", outcome.String()),
		slog.String("error", reason),
	)

	return nil
}

// reportError keeps the unit alive when it lost its claim and surfaces everything else.
func (w *worker) reportError(log *slog.Logger, err error) error {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		log.Warn("job outcome not recorded", slog.String("error", err.Error()))
		return nil
	}

	return err
}

func failureReason(res executor.Result, timeout time.Duration) string {
	switch {
	case res.TimedOut:
		return fmt.Sprintf("%s: command exceeded %s and was killed", TimeoutTag, timeout)
	case res.Err != nil:
		return res.Err.Error()
	case res.ExitCode != nil:
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			return stderr
		}
		return fmt.Sprintf("exit status %d", *res.ExitCode)
	default:
		return "command did not report an exit status"
	}
}
