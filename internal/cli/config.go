package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and change runtime settings shared by every worker",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set backoff_base, max_retries, poll_interval_ms or max_backoff_sec",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		if err := q.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		value, ok, err := q.GetSetting(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("setting %s is not set", args[0])
		}

		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every setting as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		q, _, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer q.Close()

		settings, err := q.Settings(cmd.Context())
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(settings)
	},
}

func init() {
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
}
