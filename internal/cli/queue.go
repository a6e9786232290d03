package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage queues",
}

var queuePurgeCmd = &cobra.Command{
	Use:   "purge <name>",
	Short: "Delete every job in a queue, whatever its state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		n, err := q.Purge(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "purged %d jobs from %s\n", n, args[0])
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queues that hold jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		queues, err := q.Queues(cmd.Context())
		if err != nil {
			return err
		}

		for _, name := range queues {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queuePurgeCmd, queueListCmd)
}
