package cli

import (
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print job counts and runtime statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		snapshot, err := q.Metrics(cmd.Context())
		if err != nil {
			return err
		}

		return printJSON(cmd, snapshot)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Print a job's execution log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		logs, err := q.Logs(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd, logs)
	},
}
