package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldswap/internal/config"
	"yieldswap/internal/model"
	"yieldswap/internal/scenario"
	"yieldswap/internal/snapshot"
	"yieldswap/internal/storage"
	"yieldswap/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file, err := os.Open(cfg.Scenario)
	if err != nil {
		return fmt.Errorf("open scenario: %w", err)
	}
	steps, err := scenario.ReadSteps(file)
	file.Close()
	if err != nil {
		return err
	}

	var (
		sink  storage.Storage
		store snapshot.Store
		db    *postgres.Store
	)
	if cfg.PGDSN != "" {
		db, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = db
		store = &snapshot.DBStore{Store: db, Name: cfg.StateName}
	} else {
		jsonl := storage.NewJsonlStorage(cfg.Out)
		if err := jsonl.Reset(); err != nil {
			return err
		}
		sink = jsonl
		store = &snapshot.FileStore{Path: cfg.State}
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("steps", len(steps)),
		zap.String("out", cfg.Out),
		zap.String("state", cfg.State),
		zap.Bool("postgres", db != nil),
		zap.Time("start_time", cfg.StartTime),
		zap.Uint32("swap_fee_bps", cfg.SwapFeeBps),
		zap.Duration("epoch_length", cfg.EpochLength),
	)

	runner, err := scenario.NewRunner(scenario.Config{
		ChainID:             cfg.ChainID,
		Start:               cfg.StartTime,
		Owner:               cfg.Owner,
		FeeReceiver:         cfg.FeeReceiver,
		SwapFeeBps:          cfg.SwapFeeBps,
		ReceiverFeeShareBps: cfg.ReceiverFeeShareBps,
		IdleBps:             cfg.IdleBps,
		EpochLength:         cfg.EpochLength,
		InterestBps:         cfg.InterestBps,
		Decimals:            cfg.Decimals,
		StopOnError:         cfg.StopOnError,
	}, sink, store, logger)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, steps)
	if err != nil {
		return err
	}
	if db != nil && len(result.Harvests) > 0 {
		if err := db.InsertHarvests(ctx, result.Harvests); err != nil {
			return fmt.Errorf("store harvests: %w", err)
		}
	}

	for _, pair := range result.Pairs {
		logPair(logger, pair)
	}
	return nil
}

func logPair(logger *zap.Logger, pair model.PairSnapshot) {
	logger.Info("pair state",
		zap.String("pair", pair.Address),
		zap.Bool("stable", pair.StableSwapMode),
		zap.String("reserve0", pair.Reserve0),
		zap.String("reserve1", pair.Reserve1),
		zap.String("lp_total_supply", pair.LpTotalSupply),
		zap.String("protocol_fee0", pair.ProtocolFee0),
		zap.String("protocol_fee1", pair.ProtocolFee1),
		zap.Uint64("epoch", pair.CurrentEpoch),
	)
}
