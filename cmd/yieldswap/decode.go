package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldswap/internal/config"
	"yieldswap/internal/events"
	"yieldswap/internal/model"
	"yieldswap/internal/storage"
)

// decodeOutput splits the stream into the typed-event file and the error file.
type decodeOutput struct {
	typed  *storage.JsonlStorage
	failed *storage.JsonlStorage
}

func (o decodeOutput) PutTypedEvents(evs []model.TypedEvent) error {
	return o.typed.PutTypedEvents(evs)
}

func (o decodeOutput) PutDecodeErrors(errs []model.DecodeError) error {
	return o.failed.PutDecodeErrors(errs)
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	switch {
	case cfg.In == "":
		return fmt.Errorf("input path is required")
	case cfg.Out == "":
		return fmt.Errorf("output path is required")
	case cfg.Errors == "":
		return fmt.Errorf("errors path is required")
	}

	decoder, err := events.NewDecoder()
	if err != nil {
		return err
	}
	only, err := selectedTopics(cfg.Events)
	if err != nil {
		return err
	}

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	out := decodeOutput{typed: storage.NewJsonlStorage(cfg.Out), failed: storage.NewJsonlStorage(cfg.Errors)}
	for _, s := range []*storage.JsonlStorage{out.typed, out.failed} {
		if err := s.Reset(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Strings("events", cfg.Events),
	)
	stats, err := decoder.DecodeStream(ctx, input, only, 0, out)
	if err != nil {
		return err
	}
	logger.Info("decode complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

func selectedTopics(names []string) ([]common.Hash, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return events.Topic0s(names...)
}
