package queuedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const NoRowsAffected = 0

var (
	ErrJobNotFound = errors.New("job not found")
	ErrDuplicateID = errors.New("job id already exists")
	// ErrClaimLost is returned when a job is no longer processing under the worker reporting on it.
	ErrClaimLost = errors.New("job is not held by worker")
	// ErrNotRequeueable is returned when requeue targets a job that is completed or still processing.
	ErrNotRequeueable = errors.New("job state does not allow requeue")
)

type JobDB interface {
	// Insert stores a new pending job. ErrDuplicateID is returned when the id is taken.
	Insert(ctx context.Context, job *Job) error

	// Claim moves the next eligible pending job of queue to processing under workerID in one statement.
	// A job is eligible once run_at and run_after (when set) are not after now.
	// Candidates are ordered by priority, then created_at, then id.
	// Returns nil when nothing is eligible.
	Claim(ctx context.Context, workerID, queue string, now time.Time) (*Job, error)

	Get(ctx context.Context, idb bun.IDB, id string) (*Job, error)

	// List orders by priority ascending and then most recent first.
	List(ctx context.Context, filter ListFilter) ([]Job, error)

	Queues(ctx context.Context) ([]string, error)

	QueueDepths(ctx context.Context) ([]QueueDepth, error)

	// CompleteTx finishes a processing job held by workerID.
	CompleteTx(ctx context.Context, tx bun.IDB, c Completion) (*Job, error)

	// FailTx records a failed attempt of a processing job held by workerID.
	// The update only applies while attempts still equals f.PrevAttempts.
	FailTx(ctx context.Context, tx bun.IDB, f Failure) (*Job, error)

	// Requeue resets a dead, failed or pending job so it can be claimed again.
	Requeue(ctx context.Context, id string, now time.Time) (*Job, error)

	// Delete removes a job and its logs.
	Delete(ctx context.Context, id string) error

	// Purge removes every job of queue and their logs, returning the number of jobs removed.
	Purge(ctx context.Context, queue string) (int, error)

	AppendLogTx(ctx context.Context, tx bun.IDB, entry *JobLog) error

	// Logs returns the job's log entries in insertion order.
	Logs(ctx context.Context, jobID string) ([]JobLog, error)
}

type Completion struct {
	JobID    string
	WorkerID string
	Output   string
	Now      time.Time
}

type Failure struct {
	JobID        string
	WorkerID     string
	PrevAttempts int
	Attempts     int
	State        State
	RunAfter     *int64
	LastError    string
	Now          time.Time
}

type jobDB struct {
	db *bun.DB
}

func NewJobDB(db *bun.DB) JobDB {
	return &jobDB{
		db: db,
	}
}

func (r *jobDB) Insert(ctx context.Context, job *Job) error {
	res, err := r.db.NewInsert().
		Model(job).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == NoRowsAffected {
		return ErrDuplicateID
	}

	return nil
}

func (r *jobDB) Claim(ctx context.Context, workerID, queue string, now time.Time) (*Job, error) {
	nowSec := now.Unix()
	sub := r.db.NewSelect().
		Model((*Job)(nil)).
		Column("id").
		Where("state = ?", StatePending).
		Where("queue = ?", queue).
		Where("run_at <= ?", nowSec).
		Where("(run_after IS NULL OR run_after <= ?)", nowSec).
		Order("priority ASC", "created_at ASC", "id ASC").
		Limit(1)

	// SQLite serializes writers, so the single UPDATE statement is already exclusive there.
	if r.db.Dialect().Name() == dialect.PG {
		sub = sub.For("UPDATE SKIP LOCKED")
	}

	var jobs []Job
	err := r.db.NewUpdate().
		Model((*Job)(nil)).
		Set("state = ?", StateProcessing).
		Set("locked_by = ?", workerID).
		Set("updated_at = ?", now.UnixMilli()).
		Where("id = (?)", sub).
		Where("state = ?", StatePending).
		Returning("*").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		return nil, nil
	}

	return &jobs[0], nil
}

func (r *jobDB) Get(ctx context.Context, idb bun.IDB, id string) (*Job, error) {
	if idb == nil {
		idb = r.db
	}

	var job Job
	err := idb.NewSelect().
		Model(&job).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func (r *jobDB) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	jobs := make([]Job, 0)
	q := r.db.NewSelect().Model(&jobs)
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.Queue != "" {
		q = q.Where("queue = ?", filter.Queue)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	err := q.Order("priority ASC", "created_at DESC", "id DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

func (r *jobDB) Queues(ctx context.Context) ([]string, error) {
	queues := make([]string, 0)
	err := r.db.NewSelect().
		Model((*Job)(nil)).
		Column("queue").
		Distinct().
		Order("queue ASC").
		Scan(ctx, &queues)
	if err != nil {
		return nil, err
	}

	return queues, nil
}

func (r *jobDB) QueueDepths(ctx context.Context) ([]QueueDepth, error) {
	depths := make([]QueueDepth, 0)
	err := r.db.NewSelect().
		Model((*Job)(nil)).
		Column("queue", "state").
		ColumnExpr("COUNT(*) AS count").
		Group("queue", "state").
		Order("queue ASC", "state ASC").
		Scan(ctx, &depths)
	if err != nil {
		return nil, err
	}

	return depths, nil
}

func (r *jobDB) CompleteTx(ctx context.Context, tx bun.IDB, c Completion) (*Job, error) {
	var jobs []Job
	err := tx.NewUpdate().
		Model((*Job)(nil)).
		Set("state = ?", StateCompleted).
		Set("output = ?", c.Output).
		Set("locked_by = NULL").
		Set("updated_at = ?", c.Now.UnixMilli()).
		Where("id = ?", c.JobID).
		Where("state = ?", StateProcessing).
		Where("locked_by = ?", c.WorkerID).
		Returning("*").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		return nil, r.missingOrLost(ctx, tx, c.JobID)
	}

	return &jobs[0], nil
}

func (r *jobDB) FailTx(ctx context.Context, tx bun.IDB, f Failure) (*Job, error) {
	var jobs []Job
	err := tx.NewUpdate().
		Model((*Job)(nil)).
		Set("state = ?", f.State).
		Set("attempts = ?", f.Attempts).
		Set("run_after = ?", f.RunAfter).
		Set("last_error = ?", f.LastError).
		Set("locked_by = NULL").
		Set("updated_at = ?", f.Now.UnixMilli()).
		Where("id = ?", f.JobID).
		Where("state = ?", StateProcessing).
		Where("locked_by = ?", f.WorkerID).
		Where("attempts = ?", f.PrevAttempts).
		Returning("*").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		return nil, r.missingOrLost(ctx, tx, f.JobID)
	}

	return &jobs[0], nil
}

func (r *jobDB) missingOrLost(ctx context.Context, idb bun.IDB, id string) error {
	if _, err := r.Get(ctx, idb, id); err != nil {
		return err
	}

	return ErrClaimLost
}

func (r *jobDB) Requeue(ctx context.Context, id string, now time.Time) (*Job, error) {
	var jobs []Job
	err := r.db.NewUpdate().
		Model((*Job)(nil)).
		Set("state = ?", StatePending).
		Set("attempts = 0").
		Set("last_error = NULL").
		Set("run_after = NULL").
		Set("locked_by = NULL").
		Set("updated_at = ?", now.UnixMilli()).
		Where("id = ?", id).
		Where("state IN (?)", bun.In([]State{StateDead, StateFailed, StatePending})).
		Returning("*").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		if _, err := r.Get(ctx, r.db, id); err != nil {
			return nil, err
		}
		return nil, ErrNotRequeueable
	}

	return &jobs[0], nil
}

func (r *jobDB) Delete(ctx context.Context, id string) error {
	return RunInTx(ctx, r.db, func(tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*JobLog)(nil)).
			Where("job_id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*Job)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == NoRowsAffected {
			return ErrJobNotFound
		}

		return nil
	})
}

func (r *jobDB) Purge(ctx context.Context, queue string) (int, error) {
	return RunInTxWithReturnType(ctx, r.db, func(tx bun.Tx) (int, error) {
		ids := tx.NewSelect().
			Model((*Job)(nil)).
			Column("id").
			Where("queue = ?", queue)

		_, err := tx.NewDelete().
			Model((*JobLog)(nil)).
			Where("job_id IN (?)", ids).
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		res, err := tx.NewDelete().
			Model((*Job)(nil)).
			Where("queue = ?", queue).
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}

		return int(rows), nil
	})
}

func (r *jobDB) AppendLogTx(ctx context.Context, tx bun.IDB, entry *JobLog) error {
	if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return fmt.Errorf("appending log for job %s: %w", entry.JobID, err)
	}

	return nil
}

func (r *jobDB) Logs(ctx context.Context, jobID string) ([]JobLog, error) {
	logs := make([]JobLog, 0)
	err := r.db.NewSelect().
		Model(&logs).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return logs, nil
}
