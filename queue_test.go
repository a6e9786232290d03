package queuectl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimKotowski/queuectl/internal/queuedb"
	"github.com/TimKotowski/queuectl/testHelper"
	"github.com/TimKotowski/queuectl/testHelper/sqlite"
)

var epoch = time.Unix(1_760_000_000, 0)

func newTestQueue(t *testing.T, opts ...ConfigFunc) (*Queue, *clockwork.FakeClock) {
	t.Helper()

	resource := sqlite.SetUp(t, false)
	clock := clockwork.NewFakeClockAt(epoch)
	conf := NewConfig(append([]ConfigFunc{
		WithDriver(queuedb.DriverSQLite),
		WithDSN(resource.Dsn),
		WithClock(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)...)

	return NewWithDB(context.Background(), resource.DB, conf), clock
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

func mustEnqueue(t *testing.T, q *Queue, req EnqueueRequest) string {
	t.Helper()
	id, err := q.Enqueue(context.Background(), req)
	require.NoError(t, err)
	return id
}

func mustClaim(t *testing.T, q *Queue, workerID string) *Job {
	t.Helper()
	job, err := q.claim(context.Background(), workerID, DefaultQueue)
	require.NoError(t, err)
	require.NotNil(t, job, "expected a claimable job")
	return job
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("valid job is stored pending with defaults", func(t *testing.T) {
		q, _ := newTestQueue(t)

		id := mustEnqueue(t, q, EnqueueRequest{ID: "job1", Command: "echo hi"})
		assert.Equal(t, "job1", id)

		job, err := q.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatePending, job.State)
		assert.Equal(t, 0, job.Attempts)
		assert.Equal(t, DefaultQueue, job.Queue)
		assert.Equal(t, DefaultPriority, job.Priority)
		assert.Equal(t, 3, job.MaxRetries)
		assert.Equal(t, epoch.Unix(), job.RunAt)
		assert.Nil(t, job.RunAfter)
		assert.Nil(t, job.LockedBy)
		assert.Equal(t, epoch.UnixMilli(), job.CreatedAt)
	})

	t.Run("generated id", func(t *testing.T) {
		q, _ := newTestQueue(t)

		id := mustEnqueue(t, q, EnqueueRequest{Command: "true"})
		assert.Len(t, id, 26)
	})

	t.Run("max_retries follows the setting", func(t *testing.T) {
		q, _ := newTestQueue(t)
		require.NoError(t, q.SetSetting(ctx, queuedb.SettingMaxRetries, "7"))

		id := mustEnqueue(t, q, EnqueueRequest{Command: "true"})
		job, err := q.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 7, job.MaxRetries)
	})

	t.Run("rejected input", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "dup", Command: "true"})

		tests := map[string]EnqueueRequest{
			"empty command":    {Command: "   "},
			"duplicate id":     {ID: "dup", Command: "true"},
			"negative retries": {Command: "true", MaxRetries: intPtr(-1)},
			"zero timeout":     {Command: "true", TimeoutSec: intPtr(0)},
			"negative run_at":  {Command: "true", RunAt: int64Ptr(-5)},
		}
		for name, req := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := q.Enqueue(ctx, req)
				assert.ErrorIs(t, err, ErrValidation)
			})
		}

		jobs, err := q.List(ctx, ListFilter{})
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}

func TestClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("priority then creation order", func(t *testing.T) {
		q, clock := newTestQueue(t)

		mustEnqueue(t, q, EnqueueRequest{ID: "A", Command: "true", Priority: intPtr(1)})
		clock.Advance(time.Second)
		mustEnqueue(t, q, EnqueueRequest{ID: "B", Command: "true", Priority: intPtr(1)})
		clock.Advance(time.Second)
		mustEnqueue(t, q, EnqueueRequest{ID: "C", Command: "true", Priority: intPtr(0)})

		var order []string
		for range 3 {
			order = append(order, mustClaim(t, q, "w1").ID)
		}
		assert.Equal(t, []string{"C", "A", "B"}, order)

		job, err := q.claim(ctx, "w1", DefaultQueue)
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("claimed job is processing under the worker", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "job1", Command: "true"})

		job := mustClaim(t, q, "worker-0")
		assert.Equal(t, StateProcessing, job.State)
		require.NotNil(t, job.LockedBy)
		assert.Equal(t, "worker-0", *job.LockedBy)
	})

	t.Run("future run_at is not eligible", func(t *testing.T) {
		q, clock := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "later", Command: "true", RunAt: int64Ptr(epoch.Unix() + 60)})

		job, err := q.claim(ctx, "w1", DefaultQueue)
		require.NoError(t, err)
		assert.Nil(t, job)

		clock.Advance(time.Minute)
		assert.Equal(t, "later", mustClaim(t, q, "w1").ID)
	})

	t.Run("other queues are not touched", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "email", Command: "true", Queue: "emails"})

		job, err := q.claim(ctx, "w1", DefaultQueue)
		require.NoError(t, err)
		assert.Nil(t, job)

		job, err = q.claim(ctx, "w1", "emails")
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, "email", job.ID)
	})

	t.Run("concurrent claimers take every job exactly once", func(t *testing.T) {
		q, _ := newTestQueue(t)

		const (
			claimers = 20
			jobs     = 100
		)
		for i := range jobs {
			mustEnqueue(t, q, EnqueueRequest{ID: fmt.Sprintf("job-%03d", i), Command: "true"})
		}

		var (
			mu      sync.Mutex
			claimed []*Job
			wg      sync.WaitGroup
		)
		for c := range claimers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					job, err := q.claim(ctx, fmt.Sprintf("claimer-%d", c), DefaultQueue)
					if !assert.NoError(t, err) || job == nil {
						return
					}
					mu.Lock()
					claimed = append(claimed, job)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		byID := testHelper.GroupBy(claimed, func(j *Job) string { return j.ID })
		assert.Len(t, byID, jobs)
		for id, group := range byID {
			assert.Len(t, group, 1, "job %s claimed more than once", id)
		}

		pending, err := q.List(ctx, ListFilter{State: StatePending})
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("separate store handles share the file without double claims", func(t *testing.T) {
		const (
			handles = 6
			units   = 4
			jobs    = 120
		)

		resource := sqlite.SetUp(t, false)
		clock := clockwork.NewFakeClockAt(epoch)
		queues := make([]*Queue, 0, handles)
		for range handles {
			db, err := queuedb.Open(ctx, queuedb.ConnOptions{Driver: queuedb.DriverSQLite, DSN: resource.Dsn})
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })

			queues = append(queues, NewWithDB(ctx, db, NewConfig(
				WithDriver(queuedb.DriverSQLite),
				WithDSN(resource.Dsn),
				WithClock(clock),
				WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			)))
		}
		for i := range jobs {
			mustEnqueue(t, queues[i%handles], EnqueueRequest{ID: fmt.Sprintf("job-%03d", i), Command: "true"})
		}

		var (
			mu      sync.Mutex
			claimed []*Job
			wg      sync.WaitGroup
		)
		for h, q := range queues {
			for u := range units {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						job, err := q.claim(ctx, fmt.Sprintf("handle-%d-unit-%d", h, u), DefaultQueue)
						if !assert.NoError(t, err) || job == nil {
							return
						}
						if !assert.NoError(t, q.complete(ctx, job, Attempt{Duration: 200 * time.Millisecond})) {
							return
						}
						mu.Lock()
						claimed = append(claimed, job)
						mu.Unlock()
					}
				}()
			}
		}
		wg.Wait()

		byID := testHelper.GroupBy(claimed, func(j *Job) string { return j.ID })
		assert.Len(t, byID, jobs)
		for id, group := range byID {
			assert.Len(t, group, 1, "job %s claimed more than once", id)
		}

		snapshot, err := queues[0].Metrics(ctx)
		require.NoError(t, err)
		assert.Equal(t, jobs, snapshot.Completed)
		assert.Equal(t, int64(jobs), snapshot.CompletedRuns)
		assert.InDelta(t, 200.0, snapshot.AvgRuntimeMs, 0.001)
	})
}

func TestRollbackLogging(t *testing.T) {
	ctx := context.Background()

	var configured, global bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&global, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	q, _ := newTestQueue(t, WithLogger(slog.New(slog.NewTextHandler(&configured, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	mustEnqueue(t, q, EnqueueRequest{ID: "job1", Command: "true"})
	job := mustClaim(t, q, "w1")

	stale := *job
	other := "w2"
	stale.LockedBy = &other
	require.ErrorIs(t, q.complete(ctx, &stale, Attempt{}), ErrValidation)
	_, err := q.fail(ctx, &stale, "boom", Attempt{})
	require.ErrorIs(t, err, ErrValidation)

	assert.Contains(t, configured.String(), "complete transaction rolled back")
	assert.Contains(t, configured.String(), "fail transaction rolled back")
	assert.Empty(t, global.String())

	logs, err := q.Logs(ctx, "job1")
	require.NoError(t, err)
	assert.Empty(t, logs, "rolled back attempts leave no log rows")
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("records output, log and runtime mean", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "a", Command: "echo a"})
		mustEnqueue(t, q, EnqueueRequest{ID: "b", Command: "echo b"})

		a := mustClaim(t, q, "w1")
		require.NoError(t, q.complete(ctx, a, Attempt{Stdout: "a\n", Duration: 100 * time.Millisecond}))
		b := mustClaim(t, q, "w1")
		require.NoError(t, q.complete(ctx, b, Attempt{Stdout: "b\n", Duration: 300 * time.Millisecond}))

		job, err := q.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, job.State)
		require.NotNil(t, job.Output)
		assert.Equal(t, "a\n", *job.Output)
		assert.Nil(t, job.LockedBy)

		logs, err := q.Logs(ctx, "a")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "a\n", logs[0].Stdout)
		assert.Equal(t, 1, logs[0].Attempt)

		snapshot, err := q.Metrics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, snapshot.Total)
		assert.Equal(t, 2, snapshot.Completed)
		assert.Equal(t, int64(2), snapshot.CompletedRuns)
		assert.InDelta(t, 200.0, snapshot.AvgRuntimeMs, 0.001)
	})

	t.Run("claim held by another worker", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "a", Command: "true"})

		job := mustClaim(t, q, "w1")
		stale := *job
		other := "w2"
		stale.LockedBy = &other

		err := q.complete(ctx, &stale, Attempt{})
		assert.ErrorIs(t, err, ErrValidation)

		require.NoError(t, q.complete(ctx, job, Attempt{}))
		err = q.complete(ctx, job, Attempt{})
		assert.ErrorIs(t, err, ErrValidation, "a second report for the same claim must not apply")
	})

	t.Run("deleted while running", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "a", Command: "true"})

		job := mustClaim(t, q, "w1")
		require.NoError(t, q.Delete(ctx, "a"))

		err := q.complete(ctx, job, Attempt{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFail(t *testing.T) {
	ctx := context.Background()

	t.Run("exponential backoff then dead letter", func(t *testing.T) {
		q, clock := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "flaky", Command: "false", MaxRetries: intPtr(2)})

		for attempt, delay := range []int64{2, 4} {
			job := mustClaim(t, q, "w1")
			outcome, err := q.fail(ctx, job, "exit status 1", Attempt{Stderr: "boom"})
			require.NoError(t, err)
			assert.Equal(t, OutcomeRetried, outcome)

			stored, err := q.Get(ctx, "flaky")
			require.NoError(t, err)
			assert.Equal(t, StatePending, stored.State)
			assert.Equal(t, attempt+1, stored.Attempts)
			require.NotNil(t, stored.RunAfter)
			assert.Equal(t, clock.Now().Unix()+delay, *stored.RunAfter)
			require.NotNil(t, stored.LastError)
			assert.Equal(t, "exit status 1", *stored.LastError)

			clock.Advance(time.Duration(delay-1) * time.Second)
			early, err := q.claim(ctx, "w1", DefaultQueue)
			require.NoError(t, err)
			assert.Nil(t, early, "claimed before backoff elapsed")

			clock.Advance(time.Second)
		}

		job := mustClaim(t, q, "w1")
		outcome, err := q.fail(ctx, job, "exit status 1", Attempt{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeDeadLettered, outcome)

		dead, err := q.DeadLetters(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, dead, 1)
		assert.Equal(t, "flaky", dead[0].ID)
		assert.Equal(t, 3, dead[0].Attempts)

		logs, err := q.Logs(ctx, "flaky")
		require.NoError(t, err)
		require.Len(t, logs, 3)
		for i, entry := range logs {
			assert.Equal(t, i+1, entry.Attempt)
		}

		snapshot, err := q.Metrics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, snapshot.Dead)
		assert.Equal(t, int64(1), snapshot.DeadLettered)
	})

	t.Run("zero retries dead letters on first failure", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "once", Command: "false", MaxRetries: intPtr(0)})

		outcome, err := q.fail(ctx, mustClaim(t, q, "w1"), "exit status 1", Attempt{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeDeadLettered, outcome)
	})

	t.Run("backoff cap", func(t *testing.T) {
		q, clock := newTestQueue(t)
		require.NoError(t, q.SetSetting(ctx, queuedb.SettingBackoffBase, "10"))
		require.NoError(t, q.SetSetting(ctx, queuedb.SettingMaxBackoffSec, "30"))
		mustEnqueue(t, q, EnqueueRequest{ID: "capped", Command: "false", MaxRetries: intPtr(5)})

		job := mustClaim(t, q, "w1")
		_, err := q.fail(ctx, job, "boom", Attempt{})
		require.NoError(t, err)
		clock.Advance(10 * time.Second)

		job = mustClaim(t, q, "w1")
		_, err = q.fail(ctx, job, "boom", Attempt{})
		require.NoError(t, err)

		stored, err := q.Get(ctx, "capped")
		require.NoError(t, err)
		require.NotNil(t, stored.RunAfter)
		assert.Equal(t, clock.Now().Unix()+30, *stored.RunAfter)
	})

	t.Run("stale attempt count is rejected", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "a", Command: "false"})

		job := mustClaim(t, q, "w1")
		stale := *job
		stale.Attempts = 5

		_, err := q.fail(ctx, &stale, "boom", Attempt{})
		assert.ErrorIs(t, err, ErrValidation)

		stored, err := q.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, StateProcessing, stored.State)
		assert.Equal(t, 0, stored.Attempts)
	})
}

func TestNextFailure(t *testing.T) {
	job := &Job{ID: "a", Attempts: 1, MaxRetries: 2, LockedBy: func() *string { s := "w"; return &s }()}

	failure, outcome := nextFailure(job, "boom", 2, 0, epoch)
	assert.Equal(t, OutcomeRetried, outcome)
	assert.Equal(t, StatePending, failure.State)
	assert.Equal(t, 2, failure.Attempts)
	assert.Equal(t, 1, failure.PrevAttempts)
	assert.Equal(t, "w", failure.WorkerID)
	require.NotNil(t, failure.RunAfter)
	assert.Equal(t, epoch.Unix()+4, *failure.RunAfter)

	job.Attempts = 2
	failure, outcome = nextFailure(job, "boom", 2, 0, epoch)
	assert.Equal(t, OutcomeDeadLettered, outcome)
	assert.Equal(t, StateDead, failure.State)
	assert.Equal(t, 3, failure.Attempts)
}

func TestRequeue(t *testing.T) {
	ctx := context.Background()

	t.Run("dead job gets a fresh retry budget", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "dead", Command: "false", MaxRetries: intPtr(0)})
		_, err := q.fail(ctx, mustClaim(t, q, "w1"), "boom", Attempt{})
		require.NoError(t, err)

		require.NoError(t, q.Requeue(ctx, "dead"))

		job, err := q.Get(ctx, "dead")
		require.NoError(t, err)
		assert.Equal(t, StatePending, job.State)
		assert.Equal(t, 0, job.Attempts)
		assert.Nil(t, job.LastError)
		assert.Nil(t, job.RunAfter)

		assert.Equal(t, "dead", mustClaim(t, q, "w1").ID)
	})

	t.Run("completed and processing jobs are rejected", func(t *testing.T) {
		q, _ := newTestQueue(t)
		mustEnqueue(t, q, EnqueueRequest{ID: "done", Command: "true", Priority: intPtr(0)})
		mustEnqueue(t, q, EnqueueRequest{ID: "running", Command: "true"})
		require.NoError(t, q.complete(ctx, mustClaim(t, q, "w1"), Attempt{}))
		mustClaim(t, q, "w1")

		assert.ErrorIs(t, q.Requeue(ctx, "done"), ErrValidation)
		assert.ErrorIs(t, q.Requeue(ctx, "running"), ErrValidation)
	})

	t.Run("missing job", func(t *testing.T) {
		q, _ := newTestQueue(t)

		err := q.Requeue(ctx, "nope")
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "nope", notFound.JobID)
	})
}

func TestDeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	mustEnqueue(t, q, EnqueueRequest{ID: "a", Command: "true"})
	mustEnqueue(t, q, EnqueueRequest{ID: "b", Command: "true", Queue: "emails"})
	mustEnqueue(t, q, EnqueueRequest{ID: "c", Command: "true", Queue: "emails"})
	require.NoError(t, q.complete(ctx, mustClaim(t, q, "w1"), Attempt{Stdout: "ok"}))

	queues, err := q.Queues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultQueue, "emails"}, queues)

	require.NoError(t, q.Delete(ctx, "a"))
	_, err = q.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = q.Logs(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, q.Delete(ctx, "a"), ErrNotFound)

	n, err := q.Purge(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = q.Purge(ctx, "emails")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = q.Purge(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	snapshot, err := q.Metrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, snapshot.Total)
	assert.Equal(t, int64(1), snapshot.CompletedRuns, "lifetime counters survive deletes")
}

func TestList(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue(t, WithListLimit(2))

	for i := range 3 {
		mustEnqueue(t, q, EnqueueRequest{ID: fmt.Sprintf("p5-%d", i), Command: "true"})
		clock.Advance(time.Second)
	}
	mustEnqueue(t, q, EnqueueRequest{ID: "p1", Command: "true", Priority: intPtr(1)})

	jobs, err := q.List(ctx, ListFilter{Limit: 10})
	require.NoError(t, err)
	ids := testHelper.Map(jobs, func(j Job) string { return j.ID })
	assert.Equal(t, []string{"p1", "p5-2", "p5-1", "p5-0"}, ids)

	jobs, err = q.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 2, "default limit applies")

	_, err = q.List(ctx, ListFilter{State: "sleeping"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = q.List(ctx, ListFilter{Limit: -1})
	assert.ErrorIs(t, err, ErrValidation)

	mustClaim(t, q, "w1")
	all, err := q.List(ctx, ListFilter{Limit: 10})
	require.NoError(t, err)
	processing, pending := testHelper.Partition(all, func(j Job) bool { return j.State == StateProcessing })
	assert.Len(t, processing, 1)
	assert.Len(t, pending, 3)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, WithPollInterval(250*time.Millisecond))

	settings, err := q.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		queuedb.SettingBackoffBase:    "2",
		queuedb.SettingMaxRetries:     "3",
		queuedb.SettingPollIntervalMs: "1000",
		queuedb.SettingMaxBackoffSec:  "0",
	}, settings)

	interval, err := q.pollInterval(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Second, interval)

	require.NoError(t, q.SetSetting(ctx, queuedb.SettingPollIntervalMs, "50"))
	interval, err = q.pollInterval(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, interval)

	rejected := map[string][2]string{
		"unknown key":        {"worker_count", "3"},
		"non numeric base":   {queuedb.SettingBackoffBase, "fast"},
		"zero base":          {queuedb.SettingBackoffBase, "0"},
		"negative retries":   {queuedb.SettingMaxRetries, "-1"},
		"zero poll interval": {queuedb.SettingPollIntervalMs, "0"},
	}
	for name, kv := range rejected {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, q.SetSetting(ctx, kv[0], kv[1]), ErrValidation)
		})
	}

	value, ok, err := q.GetSetting(ctx, queuedb.SettingBackoffBase)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", value)

	_, ok, err = q.GetSetting(ctx, "worker_count")
	require.NoError(t, err)
	assert.False(t, ok)
}
