package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and manage single jobs",
}

var jobRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Move a dead or failed job back to pending with a fresh retry budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		if err := q.Requeue(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "job %s moved back to pending\n", args[0])
		return nil
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a job and its logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		if err := q.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "job %s deleted\n", args[0])
		return nil
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		job, err := q.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd, job)
	},
}

func init() {
	jobCmd.AddCommand(jobRetryCmd, jobDeleteCmd, jobShowCmd)
}
