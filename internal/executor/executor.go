package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait keeps draining output after the process group is killed.
const waitDelay = 2 * time.Second

type Executor interface {
	// Execute runs command and blocks until it exits, the timeout elapses or ctx is cancelled.
	// A zero timeout means no limit. Output captured so far is always returned.
	Execute(ctx context.Context, command string, timeout time.Duration) Result
}

type Result struct {
	// ExitCode is nil when the process never exited on its own.
	ExitCode *int
	Stdout   string
	Stderr   string
	TimedOut bool
	// Err reports a failure to start or wait on the process.
	Err error
}

func (r Result) Succeeded() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode != nil && *r.ExitCode == 0
}

type shellExecutor struct {
	shell string
}

func NewShellExecutor() Executor {
	return &shellExecutor{
		shell: "sh",
	}
}

func (s *shellExecutor) Execute(ctx context.Context, command string, timeout time.Duration) Result {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, s.shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}

	err := cmd.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.TimedOut = true
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		code := 0
		res.ExitCode = &code
	case errors.As(err, &exitErr) && exitErr.Exited():
		code := exitErr.ExitCode()
		res.ExitCode = &code
	default:
		res.Err = err
	}

	return res
}
