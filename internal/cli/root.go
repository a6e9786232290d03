package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TimKotowski/queuectl"
	"github.com/TimKotowski/queuectl/internal/queuedb"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "queuectl",
	Short:        "queuectl, a persistent, priority-aware job queue",
	SilenceUsage: true,
}

// Execute is the entry point called from cmd/queuectl/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./queuectl.yaml)")
	rootCmd.PersistentFlags().String("driver", queuedb.DriverSQLite, "store backend: sqlite | postgres")
	rootCmd.PersistentFlags().String("dsn", "queue.db", "store DSN (sqlite file path or postgres URL)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug | info | warn | error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text | json")

	bindFlag("driver", rootCmd.PersistentFlags(), "driver")
	bindFlag("dsn", rootCmd.PersistentFlags(), "dsn")
	bindFlag("log_level", rootCmd.PersistentFlags(), "log-level")
	bindFlag("log_format", rootCmd.PersistentFlags(), "log-format")

	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(dlqCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	// A missing .env is fine, values then come from the environment and flags.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.SetConfigName("queuectl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(home + "/.queuectl")
	}

	viper.SetEnvPrefix("QUEUECTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "error reading config file:", err)
			os.Exit(1)
		}
	}
}

func buildLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func bindFlag(viperKey string, fs *pflag.FlagSet, flagName string) {
	if err := viper.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q → %q: %v", flagName, viperKey, err))
	}
}

// openQueue connects to the configured store and applies pending migrations.
func openQueue(ctx context.Context, opts ...queuectl.ConfigFunc) (*queuectl.Queue, *slog.Logger, error) {
	logger := buildLogger(viper.GetString("log_level"), viper.GetString("log_format"))

	conf := queuectl.NewConfig(append([]queuectl.ConfigFunc{
		queuectl.WithDriver(viper.GetString("driver")),
		queuectl.WithDSN(viper.GetString("dsn")),
		queuectl.WithLogger(logger),
		queuectl.WithQueryDebug(viper.GetString("log_level") == "debug"),
	}, opts...)...)

	q, err := queuectl.NewFromConfig(ctx, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	if err := q.Init(); err != nil {
		_ = q.Close()
		return nil, nil, err
	}

	return q, logger, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
