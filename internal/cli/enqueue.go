package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/TimKotowski/queuectl"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [command]",
	Short: "Add a job to a queue",
	Long: `Add a job to a queue.

The positional argument is the shell command to run. Pass --json with a job
descriptor instead to set every field at once, for example:

  queuectl enqueue --json '{"id":"job1","command":"sleep 2","priority":1}'

Flags given alongside --json apply unless the descriptor sets the same field.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnqueue,
}

func init() {
	addEnqueueFlags(enqueueCmd.Flags())
}

func addEnqueueFlags(fs *pflag.FlagSet) {
	fs.String("json", "", "job descriptor as a JSON object")
	fs.String("id", "", "job id (default: generated)")
	fs.String("queue", queuectl.DefaultQueue, "queue name")
	fs.Int("priority", queuectl.DefaultPriority, "priority, lower runs first")
	fs.Int("max-retries", 0, "retries before dead-lettering (default: max_retries setting)")
	fs.Int("timeout", 0, "per-attempt timeout in seconds")
	fs.Int64("run-at", 0, "earliest start as unix seconds")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	base := enqueueFlags(cmd)
	descriptor, _ := cmd.Flags().GetString("json")

	var (
		req queuectl.EnqueueRequest
		err error
	)
	switch {
	case cmd.Flags().Changed("json") && len(args) > 0:
		return errors.New("pass either a command or --json, not both")
	case cmd.Flags().Changed("json"):
		req, err = queuectl.ParseEnqueueInput(queuectl.InputDescriptor, descriptor, base)
	case len(args) == 1:
		req, err = queuectl.ParseEnqueueInput(queuectl.InputRaw, args[0], base)
	default:
		return errors.New("a command or --json is required")
	}
	if err != nil {
		return err
	}

	q, _, err := openQueue(cmd.Context())
	if err != nil {
		return err
	}
	defer q.Close()

	id, err := q.Enqueue(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", id)
	return nil
}

// enqueueFlags collects only the flags the user set, so unset ones fall back to queue defaults.
func enqueueFlags(cmd *cobra.Command) queuectl.EnqueueRequest {
	fs := cmd.Flags()
	var req queuectl.EnqueueRequest

	req.ID, _ = fs.GetString("id")
	if fs.Changed("queue") {
		req.Queue, _ = fs.GetString("queue")
	}
	if fs.Changed("priority") {
		v, _ := fs.GetInt("priority")
		req.Priority = &v
	}
	if fs.Changed("max-retries") {
		v, _ := fs.GetInt("max-retries")
		req.MaxRetries = &v
	}
	if fs.Changed("timeout") {
		v, _ := fs.GetInt("timeout")
		req.TimeoutSec = &v
	}
	if fs.Changed("run-at") {
		v, _ := fs.GetInt64("run-at")
		req.RunAt = &v
	}

	return req
}
