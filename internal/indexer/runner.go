package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"yieldswap/internal/chain"
	"yieldswap/internal/model"
	"yieldswap/internal/snapshot"
	"yieldswap/internal/storage"
)

// LogSource is the chain access the runner needs. *chain.Client implements it.
type LogSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for syncing deployed pair logs.
type RunConfig struct {
	FromBlock    uint64
	ToBlock      uint64
	Addresses    []common.Address
	Topic0       []common.Hash
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner copies pair and factory logs from the chain into storage,
// resuming from the checkpoint when one is configured.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	storage    storage.Storage
	checkpoint snapshot.Store
	logger     *zap.Logger
	seen       map[string]struct{}
	now        func() time.Time
}

// NewRunner builds a Runner. checkpoint may be nil.
func NewRunner(cfg RunConfig, source LogSource, sink storage.Storage, checkpoint snapshot.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		storage:    sink,
		checkpoint: checkpoint,
		logger:     logger,
		seen:       make(map[string]struct{}),
		now:        time.Now,
	}
}

// Run syncs [FromBlock, ToBlock]; a zero ToBlock means the latest block.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one pair address is required")
	}

	chainID, err := r.source.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	from, to := r.cfg.FromBlock, r.cfg.ToBlock
	if to == 0 {
		if to, err = r.source.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}
	if r.checkpoint != nil {
		state, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && state.Cursor >= from {
			from = state.Cursor + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", state.Cursor), zap.Uint64("from", from))
		}
	}
	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, br := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.syncRange(ctx, chainID.Uint64(), br); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) syncRange(ctx context.Context, chainID uint64, br BlockRange) error {
	r.logger.Info("fetch logs", zap.Uint64("from", br.From), zap.Uint64("to", br.To))

	var logs []types.Log
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, br.From, br.To, r.cfg.Addresses, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", br.From), zap.Uint64("to", br.To))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}

	recordedAt := r.now()
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed || r.isDuplicate(log) {
			continue
		}
		var ts uint64
		err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			ts, err = r.source.BlockTimestamp(ctx, log.BlockNumber)
			return err
		})
		if err != nil {
			return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}
		records = append(records, buildLogRecord(chainID, log, ts, recordedAt))
	}

	if err := r.storage.PutLogBatch(records); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}
	if r.checkpoint != nil {
		if err := r.checkpoint.Save(ctx, model.RunState{Cursor: br.To}); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", br.From), zap.Uint64("to", br.To))
	return nil
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
