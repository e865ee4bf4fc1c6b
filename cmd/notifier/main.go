package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "notifier",
		Short:        "Juicebox event notifier",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("state-file", "./recent-runs.json", "watermark state file")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN (stores watermarks and failures in Postgres)")
	root.PersistentFlags().StringSlice("streams", []string{"payEvents", "projectCreateEvents"}, "event streams to poll")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll every stream once and deliver new notifications",
		RunE:  runNotifier,
	}

	runCmd.Flags().String("subgraph-url", "", "subgraph GraphQL endpoint")
	runCmd.Flags().String("discord-webhook", "", "Discord webhook URL")
	runCmd.Flags().String("errors-file", "./errors.jsonl", "append-only failure log (JSONL)")
	runCmd.Flags().String("ipfs-gateway", "https://ipfs.io", "IPFS HTTP gateway")
	runCmd.Flags().String("ens-api", "https://api.ensideas.com", "ENS reverse lookup API")
	runCmd.Flags().String("eth-rpc", "", "Ethereum RPC URL for on-chain ENS lookups")
	runCmd.Flags().String("app-url", "https://juicebox.money", "base URL for project links")
	runCmd.Flags().String("explorer-url", "https://etherscan.io", "block explorer base URL")
	runCmd.Flags().Duration("call-timeout", 15*time.Second, "timeout per external call")
	runCmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Int("max-concurrency", 8, "events processed concurrently per stream (0 = unbounded)")
	runCmd.Flags().String("metrics-textfile", "", "write run metrics to this textfile after the run")
	runCmd.Flags().String("metrics-push-url", "", "push run metrics to this Pushgateway")

	root.AddCommand(runCmd)

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Print the persisted watermarks",
		RunE:  runState,
	}

	root.AddCommand(stateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
