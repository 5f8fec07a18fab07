package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"yieldswap/internal/pool"
)

func main() {
	root := &cobra.Command{
		Use:          "yieldswap",
		Short:        "Auto-yield AMM pair simulator and tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a JSONL scenario against an in-memory factory",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario JSONL path")
	simulateCmd.Flags().String("out", "./data/events.jsonl", "output event logs JSONL")
	simulateCmd.Flags().String("state", "./data/pairs.json", "pair snapshot file (empty disables)")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN; stores snapshots, harvests and logs")
	simulateCmd.Flags().String("state-name", "simulate", "run state key in Postgres")
	simulateCmd.Flags().Uint64("chain-id", 31337, "chain id written to event logs")
	simulateCmd.Flags().String("start-time", "2024-01-23T00:00:00Z", "world start (unix seconds or RFC3339)")
	simulateCmd.Flags().String("owner", "0x00000000000000000000000000000000000000d1", "factory owner")
	simulateCmd.Flags().String("fee-receiver", "0x00000000000000000000000000000000000000fe", "protocol fee receiver")
	simulateCmd.Flags().Uint32("swap-fee-bps", pool.DefaultFeeBps, "swap fee per token in bps")
	simulateCmd.Flags().Uint32("receiver-fee-share", 5000, "share of swap fees paid to the receiver in bps")
	simulateCmd.Flags().Uint32("idle-bps", pool.DefaultIdleBps, "share of deposits kept out of vaults in bps")
	simulateCmd.Flags().Duration("epoch-length", pool.DefaultEpochLength, "harvest epoch length")
	simulateCmd.Flags().Uint32("interest-bps", 500, "default vault interest per year in bps")
	simulateCmd.Flags().Uint8("decimals", 18, "default token decimals")
	simulateCmd.Flags().Bool("stop-on-error", true, "abort at the first failing step")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against given reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("reserve-in", "", "reserve of the input token")
	quoteCmd.Flags().String("reserve-out", "", "reserve of the output token")
	quoteCmd.Flags().String("amount-in", "", "input amount")
	quoteCmd.Flags().Uint32("fee-bps", pool.DefaultFeeBps, "input token fee in bps")
	quoteCmd.Flags().Bool("stable", false, "use the stable curve")
	quoteCmd.Flags().Uint8("decimals-in", 18, "input token decimals")
	quoteCmd.Flags().Uint8("decimals-out", 18, "output token decimals")

	root.AddCommand(quoteCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode event logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "./data/events.jsonl", "input event logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().StringSlice("event", nil, "event names to keep (comma-separated)")

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into pair window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/typed_events.jsonl", "input typed events JSONL")
	aggregateCmd.Flags().String("out", "./data/pair_metrics.jsonl", "output window metrics JSONL")
	aggregateCmd.Flags().String("window", "1h", "aggregation window (e.g. 5m, 1h, 24h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the JSONL output")
	aggregateCmd.Flags().String("rpc", "", "optional RPC URL for token decimals")
	aggregateCmd.Flags().Uint8("decimals", 18, "token decimals when no RPC is given")
	aggregateCmd.Flags().Int("batch-size", 1000, "windows per write")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")

	root.AddCommand(aggregateCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read deployed ERC20 tokens and ERC4626 vaults",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("rpc", "", "RPC URL")
	inspectCmd.Flags().StringSlice("token", nil, "token addresses (comma-separated)")
	inspectCmd.Flags().StringSlice("vault", nil, "vault addresses (comma-separated)")
	inspectCmd.Flags().String("holder", "", "optional holder whose balances are read")
	inspectCmd.Flags().Uint64("block", 0, "block to read balances at, 0 means latest")
	inspectCmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	inspectCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	root.AddCommand(inspectCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy deployed pair logs into JSONL or Postgres",
		RunE:  runSync,
	}

	syncCmd.Flags().String("rpc", "", "RPC URL")
	syncCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	syncCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	syncCmd.Flags().StringSlice("pair", nil, "pair and factory addresses (comma-separated)")
	syncCmd.Flags().StringSlice("event", nil, "event names to fetch, default all (comma-separated)")
	syncCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	syncCmd.Flags().String("out", "./data/pair_logs.jsonl", "output JSONL path")
	syncCmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the JSONL output")
	syncCmd.Flags().String("checkpoint", "./data/sync_checkpoint.json", "checkpoint file path")
	syncCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	syncCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	syncCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	root.AddCommand(syncCmd)

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
