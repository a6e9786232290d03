package queuectl_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/TimKotowski/queuectl"
	"github.com/TimKotowski/queuectl/internal/queuedb"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := queuectl.NewConfig()
		assert.Equal(t, time.Second, c.PollInterval)
		assert.Equal(t, 50, c.ListLimit)
		assert.Equal(t, 15*time.Second, c.MaintenanceTimeout)
		assert.Equal(t, queuedb.DriverPostgres, c.Driver)
		assert.NotNil(t, c.Clock)
		assert.NotNil(t, c.Logger)
		assert.NotNil(t, c.Executor)
		assert.Zero(t, c.DefaultTimeout)
	})

	t.Run("options", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		c := queuectl.NewConfig(
			queuectl.WithDriver(queuedb.DriverSQLite),
			queuectl.WithDSN("queue.db"),
			queuectl.WithPollInterval(time.Duration(5)*time.Second),
			queuectl.WithDefaultTimeout(time.Minute),
			queuectl.WithListLimit(10),
			queuectl.WithQueryDebug(true),
			queuectl.WithClock(clock),
		)
		assert.Equal(t, queuedb.DriverSQLite, c.Driver)
		assert.Equal(t, "queue.db", c.DSN)
		assert.Equal(t, time.Duration(5)*time.Second, c.PollInterval)
		assert.Equal(t, time.Minute, c.DefaultTimeout)
		assert.Equal(t, 10, c.ListLimit)
		assert.True(t, c.QueryDebug)
		assert.Equal(t, clock, c.Clock)
	})
}

func TestErrors(t *testing.T) {
	var err error = &queuectl.ValidationError{Field: "command", Reason: "must not be empty"}
	assert.ErrorIs(t, err, queuectl.ErrValidation)
	assert.NotErrorIs(t, err, queuectl.ErrNotFound)
	assert.EqualError(t, err, "invalid command: must not be empty")

	err = &queuectl.NotFoundError{JobID: "job1"}
	assert.ErrorIs(t, err, queuectl.ErrNotFound)
	assert.EqualError(t, err, "job job1 not found")

	cause := assert.AnError
	err = &queuectl.PersistenceError{Op: "claim", Err: cause}
	assert.ErrorIs(t, err, queuectl.ErrPersistence)
	assert.ErrorIs(t, err, cause)
}
