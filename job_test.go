package queuectl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimKotowski/queuectl"
)

func TestParseEnqueueInput(t *testing.T) {
	priority := 1
	base := queuectl.EnqueueRequest{Queue: "emails", Priority: &priority}

	t.Run("raw payload is the command", func(t *testing.T) {
		req, err := queuectl.ParseEnqueueInput(queuectl.InputRaw, `echo '{"not":"json"}'`, base)
		require.NoError(t, err)
		assert.Equal(t, `echo '{"not":"json"}'`, req.Command)
		assert.Equal(t, "emails", req.Queue)
	})

	t.Run("descriptor overrides base fields", func(t *testing.T) {
		req, err := queuectl.ParseEnqueueInput(queuectl.InputDescriptor,
			`{"id":"job1","command":"sleep 2","priority":0,"max_retries":5,"timeout_sec":10,"run_at":1760000000}`, base)
		require.NoError(t, err)
		assert.Equal(t, "job1", req.ID)
		assert.Equal(t, "sleep 2", req.Command)
		assert.Equal(t, "emails", req.Queue)
		require.NotNil(t, req.Priority)
		assert.Equal(t, 0, *req.Priority)
		require.NotNil(t, req.MaxRetries)
		assert.Equal(t, 5, *req.MaxRetries)
		require.NotNil(t, req.TimeoutSec)
		assert.Equal(t, 10, *req.TimeoutSec)
		require.NotNil(t, req.RunAt)
		assert.Equal(t, int64(1760000000), *req.RunAt)
		assert.Equal(t, 1, priority, "base must not be mutated")
	})

	t.Run("malformed descriptor is never treated as a command", func(t *testing.T) {
		for _, payload := range []string{
			`echo hello`,
			`{"command":"true"`,
			`{"command":"true","retries":3}`,
			`{"command":"true"} {"command":"false"}`,
		} {
			_, err := queuectl.ParseEnqueueInput(queuectl.InputDescriptor, payload, base)
			assert.ErrorIs(t, err, queuectl.ErrValidation, payload)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := queuectl.ParseEnqueueInput(queuectl.InputKind(9), "true", base)
		var verr *queuectl.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "input", verr.Field)
	})
}

func TestInputKindString(t *testing.T) {
	assert.Equal(t, "raw", queuectl.InputRaw.String())
	assert.Equal(t, "descriptor", queuectl.InputDescriptor.String())
	assert.Equal(t, "InputKind(9)", queuectl.InputKind(9).String())
}
