package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimKotowski/queuectl"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs by priority, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, _ := cmd.Flags().GetString("state")
		queue, _ := cmd.Flags().GetString("queue")
		limit, _ := cmd.Flags().GetInt("limit")

		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		jobs, err := q.List(cmd.Context(), queuectl.ListFilter{State: state, Queue: queue, Limit: limit})
		if err != nil {
			return err
		}

		printJobs(cmd, jobs)
		return nil
	},
}

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the dead letter queue",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		queue, _ := cmd.Flags().GetString("queue")
		limit, _ := cmd.Flags().GetInt("limit")

		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		jobs, err := q.DeadLetters(cmd.Context(), queue, limit)
		if err != nil {
			return err
		}

		printJobs(cmd, jobs)
		return nil
	},
}

func init() {
	listCmd.Flags().String("state", "", "filter by state: pending | processing | completed | failed | dead")
	listCmd.Flags().String("queue", "", "filter by queue")
	listCmd.Flags().Int("limit", 0, "maximum rows (default 50)")

	dlqListCmd.Flags().String("queue", "", "filter by queue")
	dlqListCmd.Flags().Int("limit", 0, "maximum rows (default 50)")
	dlqCmd.AddCommand(dlqListCmd)
}

func printJobs(cmd *cobra.Command, jobs []queuectl.Job) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tQUEUE\tSTATE\tPRIORITY\tATTEMPTS\tCREATED\tLAST ERROR")
	for _, job := range jobs {
		lastError := ""
		if job.LastError != nil {
			lastError = *job.LastError
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%s\t%s\n",
			job.ID,
			job.Queue,
			job.State,
			job.Priority,
			job.Attempts,
			job.MaxRetries,
			time.UnixMilli(job.CreatedAt).UTC().Format(time.RFC3339),
			lastError,
		)
	}
}
