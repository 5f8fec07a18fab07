// Package aggregate rolls decoded pair events into fixed windows of
// volume, protocol fees and harvested yield.
package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldswap/internal/amount"
	"yieldswap/internal/events"
	"yieldswap/internal/model"
	"yieldswap/internal/snapshot"
	"yieldswap/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom restarts at this timestamp instead of the saved state.
	RecomputeFrom uint64
	// State keeps the last fully aggregated timestamp in RunState.Cursor.
	State snapshot.Store
}

// Stats summarizes a run.
type Stats struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Aggregator aggregates typed events into pair window metrics.
type Aggregator struct {
	cfg          Config
	sink         storage.MetricsSink
	decimals     *TokenDecimalsCache
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	pairs        map[string]*pairInfo
}

func NewAggregator(cfg Config, sink storage.MetricsSink, decimals *TokenDecimalsCache, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decimals == nil {
		decimals = NewTokenDecimalsCache(nil, 18, logger)
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		decimals:     decimals,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		pairs:        make(map[string]*pairInfo),
	}
}

// Register declares a pair whose PairCreated event is not in the input.
func (a *Aggregator) Register(ctx context.Context, pair, token0, token1 common.Address) {
	a.pairs[pairKey(pair.Hex())] = &pairInfo{
		token0:    token0,
		token1:    token1,
		decimals0: a.decimals.Resolve(ctx, token0),
		decimals1: a.decimals.Resolve(ctx, token1),
	}
}

// Run aggregates a typed events JSONL stream ordered by timestamp.
func (a *Aggregator) Run(ctx context.Context, input io.Reader) (Stats, error) {
	var stats Stats
	if a.sink == nil {
		return stats, fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return stats, err
	}

	scanner := bufio.NewScanner(input)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PairWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record typedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			continue
		}

		if record.EventName == events.NamePairCreated {
			if err := a.registerCreated(ctx, record); err != nil {
				stats.Failed++
				a.logger.Warn("pair created", zap.Error(err), zap.String("factory", record.Address))
			}
			continue
		}

		key := pairKey(record.Address)
		info := a.pairs[key]
		if info == nil {
			stats.Skipped++
			a.logger.Debug("event for unknown pair", zap.String("pair", record.Address), zap.String("event", record.EventName))
			continue
		}

		if record.Timestamp <= startTs {
			// already aggregated, but reserves still carry into later windows
			if record.EventName == events.NameSync {
				if err := applySync(record, info); err != nil {
					stats.Failed++
					a.logger.Warn("replay sync", zap.Error(err), zap.String("pair", record.Address), zap.Uint64("block", record.BlockNumber))
					continue
				}
			}
			stats.Skipped++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		acc := a.accumulators[key]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[key] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.flushAccumulator(acc, info))
			stats.Windows++
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[key] = acc
		}

		if err := acc.AddEvent(record, info); err != nil {
			stats.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pair", record.Address), zap.String("event", record.EventName))
			continue
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.PutWindowMetrics(ctx, batch); err != nil {
				return stats, fmt.Errorf("store window metrics: %w", err)
			}
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return stats, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}

	for key, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(acc, a.pairs[key]))
		stats.Windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.sink.PutWindowMetrics(ctx, batch); err != nil {
			return stats, fmt.Errorf("store window metrics: %w", err)
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return stats, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("windows", stats.Windows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	return stats, nil
}

func (a *Aggregator) registerCreated(ctx context.Context, record typedEventRecord) error {
	var created model.PairCreatedEventData
	if err := json.Unmarshal(record.Decoded, &created); err != nil {
		return fmt.Errorf("decode pair created: %w", err)
	}
	for _, addr := range []string{created.Pair, created.Token0, created.Token1} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid address: %s", addr)
		}
	}
	a.Register(ctx, common.HexToAddress(created.Pair), common.HexToAddress(created.Token0), common.HexToAddress(created.Token1))
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.State == nil {
		return 0, nil
	}
	state, ok, err := a.cfg.State.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load aggregate state: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return state.Cursor, nil
}

// saveState records the newest timestamp whose window is closed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.State == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.State.Save(ctx, model.RunState{Cursor: a.cfg.RecomputeFrom})
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.State.Save(ctx, model.RunState{Cursor: safeTs})
}

func (a *Aggregator) flushAccumulator(acc *Accumulator, info *pairInfo) model.PairWindowMetrics {
	metrics := model.PairWindowMetrics{
		ChainID:        acc.ChainID,
		PairAddress:    acc.PairAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		HarvestCount:   acc.HarvestCount,
		Volume0:        amount.FormatUnits(acc.Volume0, info.decimals0),
		Volume1:        amount.FormatUnits(acc.Volume1, info.decimals1),
		ProtocolFee0:   amount.FormatUnits(acc.ProtocolFee0, info.decimals0),
		ProtocolFee1:   amount.FormatUnits(acc.ProtocolFee1, info.decimals1),
		Yield0:         amount.FormatUnits(acc.Yield0, info.decimals0),
		Yield1:         amount.FormatUnits(acc.Yield1, info.decimals1),
		LastBlock:      acc.LastBlock,
	}

	window := time.Duration(a.cfg.WindowSeconds) * time.Second
	if info.reserve0 != nil {
		metrics.Reserve0 = stringPtr(amount.FormatUnits(info.reserve0, info.decimals0))
		metrics.FeeRate0 = stringPtr(amount.Ratio(acc.ProtocolFee0, info.reserve0))
		metrics.YieldAPR0 = yieldAPR(acc.Yield0, info.reserve0, window)
	}
	if info.reserve1 != nil {
		metrics.Reserve1 = stringPtr(amount.FormatUnits(info.reserve1, info.decimals1))
		metrics.FeeRate1 = stringPtr(amount.Ratio(acc.ProtocolFee1, info.reserve1))
		metrics.YieldAPR1 = yieldAPR(acc.Yield1, info.reserve1, window)
	}
	return metrics
}

func yieldAPR(yield, reserve *big.Int, window time.Duration) *string {
	if yield.Sign() == 0 {
		return nil
	}
	return stringPtr(amount.APR(yield, reserve, window))
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func pairKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
