package queuectl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"

	"github.com/TimKotowski/queuectl/internal/queuedb"
	"github.com/TimKotowski/queuectl/internal/telemetry"
	"github.com/TimKotowski/queuectl/migrations"
)

const (
	uninitialized = iota
	running
)

// Queue owns the job state machine. Every transition goes through the store,
// so any number of Queues in any number of processes can share one database.
type Queue struct {
	ctx       context.Context
	conf      *Config
	db        *bun.DB
	jobs      queuedb.JobDB
	metrics   queuedb.MetricsDB
	settings  queuedb.SettingsDB
	clock     clockwork.Clock
	logger    *slog.Logger
	telemetry *telemetry.Metrics
	gatherer  prometheus.Gatherer
	processor *BackgroundJobProcessor
	state     atomic.Uint32
}

// Attempt is what one execution of a job produced.
type Attempt struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

type ListFilter struct {
	State State
	Queue string
	Limit int
}

// Snapshot aggregates job counts and runtime statistics.
type Snapshot struct {
	Total        int           `json:"total_jobs"`
	Completed    int           `json:"completed_jobs"`
	Dead         int           `json:"dead_jobs"`
	AvgRuntimeMs float64       `json:"avg_runtime_ms"`
	ByState      map[State]int `json:"by_state"`
	// CompletedRuns and DeadLettered are lifetime counters and survive deletes and purges.
	CompletedRuns int64 `json:"completed_runs"`
	DeadLettered  int64 `json:"dead_lettered"`
}

func NewFromConfig(ctx context.Context, conf *Config) (*Queue, error) {
	db, err := initializeDB(ctx, conf)
	if err != nil {
		return nil, err
	}

	return NewWithDB(ctx, db, conf), nil
}

// NewWithDB builds a Queue over an already opened store.
func NewWithDB(ctx context.Context, db *bun.DB, conf *Config) *Queue {
	var gatherer prometheus.Gatherer
	registerer := conf.Registerer
	if registerer == nil {
		registry := prometheus.NewRegistry()
		registerer, gatherer = registry, registry
	} else if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	} else {
		gatherer = prometheus.DefaultGatherer
	}

	return &Queue{
		ctx:       ctx,
		conf:      conf,
		db:        db,
		jobs:      queuedb.NewJobDB(db),
		metrics:   queuedb.NewMetricsDB(db),
		settings:  queuedb.NewSettingsDB(db),
		clock:     conf.Clock,
		logger:    conf.Logger,
		telemetry: telemetry.NewMetrics(registerer),
		gatherer:  gatherer,
		state:     atomic.Uint32{},
	}
}

// Init applies pending migrations. It may only be called once per Queue.
func (q *Queue) Init() error {
	if !q.state.CompareAndSwap(uninitialized, running) {
		return errors.New("initializing queue already occurred, and queue is actively running")
	}

	if err := migrations.Migrate(q.ctx, q.db, q.logger); err != nil {
		return persistenceError("migrate", err)
	}

	return nil
}

// StartMaintenance runs the periodic maintenance handlers until Close.
func (q *Queue) StartMaintenance() {
	if q.processor != nil {
		return
	}

	q.processor = NewBackgroundJobProcessor(q.conf, queuedb.NewMaintenanceDB(q.db), q.clock)
	q.processor.SetUp(q.telemetry)
	q.processor.Start()
}

func (q *Queue) Close() error {
	if q.processor != nil {
		q.processor.Close()
	}

	return q.db.Close()
}

// MetricsHandler exposes the queue's Prometheus collectors.
func (q *Queue) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(q.gatherer, promhttp.HandlerOpts{})
}

func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	maxRetries := 0
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	} else {
		v, err := q.intSetting(ctx, queuedb.SettingMaxRetries, 3)
		if err != nil {
			return "", err
		}
		maxRetries = int(v)
	}

	now := q.clock.Now()
	job := &queuedb.Job{
		ID:         req.ID,
		Command:    req.Command,
		Queue:      req.Queue,
		State:      StatePending,
		MaxRetries: maxRetries,
		Priority:   DefaultPriority,
		RunAt:      now.Unix(),
		TimeoutSec: req.TimeoutSec,
		CreatedAt:  now.UnixMilli(),
		UpdatedAt:  now.UnixMilli(),
	}
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	if job.Queue == "" {
		job.Queue = DefaultQueue
	}
	if req.Priority != nil {
		job.Priority = *req.Priority
	}
	if req.RunAt != nil {
		job.RunAt = *req.RunAt
	}

	if err := q.jobs.Insert(ctx, job); err != nil {
		if errors.Is(err, queuedb.ErrDuplicateID) {
			return "", &ValidationError{Field: "id", Reason: fmt.Sprintf("job %s already exists", job.ID)}
		}
		return "", persistenceError("enqueue", err)
	}

	q.telemetry.Enqueued.WithLabelValues(job.Queue).Inc()
	q.logger.Info("job enqueued",
		slog.String("job_id", job.ID),
		slog.String("queue", job.Queue),
		slog.Int("priority", job.Priority),
	)

	return job.ID, nil
}

// claim hands the next eligible job of queue to workerID, or nil when there is none.
func (q *Queue) claim(ctx context.Context, workerID, queue string) (*Job, error) {
	job, err := q.jobs.Claim(ctx, workerID, queue, q.clock.Now())
	if err != nil {
		return nil, persistenceError("claim", err)
	}

	if job != nil {
		q.telemetry.Claimed.WithLabelValues(queue).Inc()
		q.logger.Debug("job claimed",
			slog.String("job_id", job.ID),
			slog.String("queue", queue),
			slog.String("worker_id", workerID),
		)
	}

	return job, nil
}

// complete finishes a claimed job. Log entry and runtime statistics commit with the transition.
func (q *Queue) complete(ctx context.Context, job *Job, attempt Attempt) error {
	now := q.clock.Now()
	completion := queuedb.Completion{
		JobID:    job.ID,
		WorkerID: lockHolder(job),
		Output:   attempt.Stdout,
		Now:      now,
	}

	err := queuedb.RunInTx(ctx, q.db, func(tx bun.Tx) error {
		done, err := q.jobs.CompleteTx(ctx, tx, completion)
		if err != nil {
			return err
		}

		err = q.jobs.AppendLogTx(ctx, tx, &queuedb.JobLog{
			JobID:     job.ID,
			Attempt:   done.Attempts + 1,
			Timestamp: now.UnixMilli(),
			Stdout:    attempt.Stdout,
			Stderr:    attempt.Stderr,
		})
		if err != nil {
			return err
		}

		return q.metrics.RecordCompletionTx(ctx, tx, durationMs(attempt.Duration))
	})
	if err != nil {
		q.logger.Debug("complete transaction rolled back", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return transitionError("complete", job.ID, completion.WorkerID, err)
	}

	q.telemetry.Finished.WithLabelValues(job.Queue, OutcomeCompleted.String()).Inc()
	q.telemetry.Duration.WithLabelValues(job.Queue).Observe(attempt.Duration.Seconds())

	return nil
}

// fail records a failed attempt. The job is rescheduled with exponential
// backoff while attempts stay within max_retries, and dead-lettered after.
func (q *Queue) fail(ctx context.Context, job *Job, reason string, attempt Attempt) (Outcome, error) {
	base, err := q.floatSetting(ctx, queuedb.SettingBackoffBase, 2)
	if err != nil {
		return Outcome{}, err
	}
	capSec, err := q.intSetting(ctx, queuedb.SettingMaxBackoffSec, 0)
	if err != nil {
		return Outcome{}, err
	}

	now := q.clock.Now()
	failure, outcome := nextFailure(job, reason, base, capSec, now)

	err = queuedb.RunInTx(ctx, q.db, func(tx bun.Tx) error {
		if _, err := q.jobs.FailTx(ctx, tx, failure); err != nil {
			return err
		}

		err := q.jobs.AppendLogTx(ctx, tx, &queuedb.JobLog{
			JobID:     job.ID,
			Attempt:   failure.Attempts,
			Timestamp: now.UnixMilli(),
			Stdout:    attempt.Stdout,
			Stderr:    attempt.Stderr,
		})
		if err != nil {
			return err
		}

		if outcome == OutcomeDeadLettered {
			return q.metrics.IncrementTx(ctx, tx, queuedb.MetricDeadJobs)
		}

		return nil
	})
	if err != nil {
		q.logger.Debug("fail transaction rolled back", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return Outcome{}, transitionError("fail", job.ID, failure.WorkerID, err)
	}

	q.telemetry.Finished.WithLabelValues(job.Queue, outcome.String()).Inc()
	if attempt.Duration > 0 {
		q.telemetry.Duration.WithLabelValues(job.Queue).Observe(attempt.Duration.Seconds())
	}

	return outcome, nil
}

func nextFailure(job *Job, reason string, base float64, capSec int64, now time.Time) (queuedb.Failure, Outcome) {
	failure := queuedb.Failure{
		JobID:        job.ID,
		WorkerID:     lockHolder(job),
		PrevAttempts: job.Attempts,
		Attempts:     job.Attempts + 1,
		RunAfter:     job.RunAfter,
		LastError:    reason,
		Now:          now,
	}

	if failure.Attempts > job.MaxRetries {
		failure.State = StateDead
		return failure, OutcomeDeadLettered
	}

	runAfter := now.Unix() + backoffSeconds(base, failure.Attempts, capSec)
	failure.State = StatePending
	failure.RunAfter = &runAfter

	return failure, OutcomeRetried
}

// Requeue puts a dead or failed job back to pending with a fresh retry budget.
func (q *Queue) Requeue(ctx context.Context, id string) error {
	job, err := q.jobs.Requeue(ctx, id, q.clock.Now())
	switch {
	case errors.Is(err, queuedb.ErrJobNotFound):
		return &NotFoundError{JobID: id}
	case errors.Is(err, queuedb.ErrNotRequeueable):
		return &ValidationError{Field: "state", Reason: fmt.Sprintf("job %s is not dead or failed", id)}
	case err != nil:
		return persistenceError("requeue", err)
	}

	q.logger.Info("job requeued", slog.String("job_id", job.ID), slog.String("queue", job.Queue))

	return nil
}

func (q *Queue) Delete(ctx context.Context, id string) error {
	err := q.jobs.Delete(ctx, id)
	if errors.Is(err, queuedb.ErrJobNotFound) {
		return &NotFoundError{JobID: id}
	}
	if err != nil {
		return persistenceError("delete", err)
	}

	q.logger.Info("job deleted", slog.String("job_id", id))

	return nil
}

// Purge removes every job in queue regardless of state and returns how many were removed.
func (q *Queue) Purge(ctx context.Context, queue string) (int, error) {
	if queue == "" {
		return 0, &ValidationError{Field: "queue", Reason: "must not be empty"}
	}

	n, err := q.jobs.Purge(ctx, queue)
	if err != nil {
		return 0, persistenceError("purge", err)
	}

	q.logger.Info("queue purged", slog.String("queue", queue), slog.Int("jobs", n))

	return n, nil
}

func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	job, err := q.jobs.Get(ctx, nil, id)
	if errors.Is(err, queuedb.ErrJobNotFound) {
		return nil, &NotFoundError{JobID: id}
	}
	if err != nil {
		return nil, persistenceError("get", err)
	}

	return job, nil
}

// List returns jobs ordered by priority, most recent first within a priority.
func (q *Queue) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	if filter.State != "" && !validState(filter.State) {
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", filter.State)}
	}
	if filter.Limit < 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if filter.Limit == 0 {
		filter.Limit = q.conf.ListLimit
	}

	jobs, err := q.jobs.List(ctx, queuedb.ListFilter{
		State: filter.State,
		Queue: filter.Queue,
		Limit: filter.Limit,
	})
	if err != nil {
		return nil, persistenceError("list", err)
	}

	return jobs, nil
}

// DeadLetters lists dead jobs, optionally restricted to one queue.
func (q *Queue) DeadLetters(ctx context.Context, queue string, limit int) ([]Job, error) {
	return q.List(ctx, ListFilter{State: StateDead, Queue: queue, Limit: limit})
}

// Logs returns a job's execution log in insertion order.
func (q *Queue) Logs(ctx context.Context, id string) ([]JobLog, error) {
	if _, err := q.Get(ctx, id); err != nil {
		return nil, err
	}

	logs, err := q.jobs.Logs(ctx, id)
	if err != nil {
		return nil, persistenceError("logs", err)
	}

	return logs, nil
}

// Queues returns the distinct names of queues that currently hold jobs.
func (q *Queue) Queues(ctx context.Context) ([]string, error) {
	queues, err := q.jobs.Queues(ctx)
	if err != nil {
		return nil, persistenceError("queues", err)
	}

	return queues, nil
}

func (q *Queue) Metrics(ctx context.Context) (Snapshot, error) {
	depths, err := q.jobs.QueueDepths(ctx)
	if err != nil {
		return Snapshot{}, persistenceError("metrics", err)
	}

	values, err := q.metrics.All(ctx)
	if err != nil {
		return Snapshot{}, persistenceError("metrics", err)
	}

	snapshot := Snapshot{
		ByState:       make(map[State]int, len(queuedb.States)),
		AvgRuntimeMs:  values[queuedb.MetricAvgRuntimeMs],
		CompletedRuns: int64(values[queuedb.MetricCompletedJobs]),
		DeadLettered:  int64(values[queuedb.MetricDeadJobs]),
	}
	for _, state := range queuedb.States {
		snapshot.ByState[state] = 0
	}
	for _, depth := range depths {
		snapshot.ByState[depth.State] += depth.Count
		snapshot.Total += depth.Count
	}
	snapshot.Completed = snapshot.ByState[StateCompleted]
	snapshot.Dead = snapshot.ByState[StateDead]

	return snapshot, nil
}

func transitionError(op, jobID, workerID string, err error) error {
	switch {
	case errors.Is(err, queuedb.ErrJobNotFound):
		return &NotFoundError{JobID: jobID}
	case errors.Is(err, queuedb.ErrClaimLost):
		return &ValidationError{Field: "job", Reason: fmt.Sprintf("job %s is not processing under worker %s", jobID, workerID)}
	default:
		return persistenceError(op, err)
	}
}

func lockHolder(job *Job) string {
	if job.LockedBy == nil {
		return ""
	}
	return *job.LockedBy
}

func validState(state State) bool {
	return slices.Contains(queuedb.States, state)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
