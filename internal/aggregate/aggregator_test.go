package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"yieldswap/internal/events"
	"yieldswap/internal/model"
	"yieldswap/internal/snapshot"
)

const (
	factoryHex = "0x00000000000000000000000000000000000FAC70"
	pairHex    = "0x00000000000000000000000000000000000A1B2C"
	token0Hex  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	token1Hex  = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

type memorySink struct {
	metrics []model.PairWindowMetrics
}

func (s *memorySink) PutWindowMetrics(_ context.Context, metrics []model.PairWindowMetrics) error {
	s.metrics = append(s.metrics, metrics...)
	return nil
}

func typedLines(t *testing.T, evs ...model.TypedEvent) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return &buf
}

func pairEvent(name string, block, ts uint64, decoded interface{}) model.TypedEvent {
	return model.TypedEvent{
		ChainID:     31337,
		BlockNumber: block,
		Address:     pairHex,
		EventName:   name,
		Timestamp:   ts,
		Decoded:     decoded,
	}
}

func sampleEvents() []model.TypedEvent {
	return []model.TypedEvent{
		{
			ChainID:     31337,
			BlockNumber: 1,
			Address:     factoryHex,
			EventName:   events.NamePairCreated,
			Timestamp:   1000,
			Decoded:     model.PairCreatedEventData{Token0: token0Hex, Token1: token1Hex, Pair: pairHex, Index: "1"},
		},
		pairEvent(events.NameDeposit, 2, 3700, model.LiquidityEventData{Amount0: "1000000000000000000000", Amount1: "1000000000000000000000"}),
		pairEvent(events.NameSync, 2, 3700, model.SyncEventData{Reserve0: "1000000000000000000000", Reserve1: "1000000000000000000000"}),
		pairEvent(events.NameSwap, 3, 3800, model.SwapEventData{TokenIn: token1Hex, AmountIn: "100000000000000000000", AmountOut: "90000000000000000000", ProtocolFee: "1500000000000000000"}),
		pairEvent(events.NameSync, 3, 3800, model.SyncEventData{Reserve0: "910000000000000000000", Reserve1: "1098500000000000000000"}),
		pairEvent(events.NameHarvest, 4, 7300, model.HarvestEventData{Epoch: 1, Yield0: "1000000000000000000", Yield1: "0"}),
		pairEvent(events.NameSync, 4, 7300, model.SyncEventData{Reserve0: "911000000000000000000", Reserve1: "1098500000000000000000"}),
		{
			ChainID:     31337,
			BlockNumber: 5,
			Address:     "0x0000000000000000000000000000000000000bad",
			EventName:   events.NameSwap,
			Timestamp:   7400,
			Decoded:     model.SwapEventData{TokenIn: token0Hex, AmountIn: "1"},
		},
	}
}

func TestAggregatorWindows(t *testing.T) {
	sink := &memorySink{}
	agg := NewAggregator(Config{WindowSeconds: 3600}, sink, NewTokenDecimalsCache(nil, 18, nil), nil)

	stats, err := agg.Run(context.Background(), typedLines(t, sampleEvents()...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Windows != 2 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(sink.metrics) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(sink.metrics))
	}

	first := sink.metrics[0]
	if first.WindowStart.Unix() != 3600 || first.WindowEnd.Unix() != 7200 {
		t.Fatalf("first window bounds: %s - %s", first.WindowStart, first.WindowEnd)
	}
	if first.SwapCount != 1 || first.DepositCount != 1 || first.HarvestCount != 0 {
		t.Fatalf("first window counts: %+v", first)
	}
	if first.Volume0 != "0" || first.Volume1 != "100" || first.ProtocolFee1 != "1.5" {
		t.Fatalf("first window amounts: %+v", first)
	}
	if first.Reserve0 == nil || *first.Reserve0 != "910" || first.Reserve1 == nil || *first.Reserve1 != "1098.5" {
		t.Fatalf("first window reserves: %v %v", first.Reserve0, first.Reserve1)
	}
	if first.FeeRate0 != nil || first.FeeRate1 == nil {
		t.Fatalf("fee rates: %v %v", first.FeeRate0, first.FeeRate1)
	}
	if first.YieldAPR0 != nil || first.YieldAPR1 != nil {
		t.Fatalf("no yield expected in first window")
	}

	second := sink.metrics[1]
	if second.WindowStart.Unix() != 7200 || second.HarvestCount != 1 || second.Yield0 != "1" || second.Yield1 != "0" {
		t.Fatalf("second window: %+v", second)
	}
	if second.Reserve0 == nil || *second.Reserve0 != "911" {
		t.Fatalf("second window reserve0: %v", second.Reserve0)
	}
	if second.YieldAPR0 == nil || second.YieldAPR1 != nil {
		t.Fatalf("yield apr: %v %v", second.YieldAPR0, second.YieldAPR1)
	}
	if second.LastBlock != 4 {
		t.Fatalf("last block = %d", second.LastBlock)
	}
}

func TestAggregatorResumesFromState(t *testing.T) {
	store := &snapshot.FileStore{Path: filepath.Join(t.TempDir(), "aggregate.json")}

	sink := &memorySink{}
	agg := NewAggregator(Config{WindowSeconds: 3600, State: store}, sink, nil, nil)
	if _, err := agg.Run(context.Background(), typedLines(t, sampleEvents()...)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	state, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load state: ok=%v err=%v", ok, err)
	}
	if state.Cursor != 7300 {
		t.Fatalf("cursor = %d, want 7300", state.Cursor)
	}

	resumed := &memorySink{}
	agg = NewAggregator(Config{WindowSeconds: 3600, State: store}, resumed, nil, nil)
	stats, err := agg.Run(context.Background(), typedLines(t, sampleEvents()...))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Windows != 0 || len(resumed.metrics) != 0 {
		t.Fatalf("nothing new should be aggregated: %+v", stats)
	}
}

func TestAccumulatorRejectsForeignToken(t *testing.T) {
	info := &pairInfo{}
	record := typedEventRecord{Address: pairHex, EventName: events.NameSwap}
	raw, _ := json.Marshal(model.SwapEventData{TokenIn: token0Hex, AmountIn: "5"})
	record.Decoded = raw

	acc := NewAccumulator(record, 0, 3600)
	if err := acc.AddEvent(record, info); err == nil {
		t.Fatalf("expected error for token outside the pair")
	}
	if acc.SwapCount != 0 {
		t.Fatalf("failed swap should not count")
	}
}

func TestAggregatorCountsBadReplayedSync(t *testing.T) {
	evs := sampleEvents()
	input := []model.TypedEvent{
		evs[0],
		evs[1],
		evs[2],
		pairEvent(events.NameSync, 3, 3800, model.SyncEventData{Reserve0: "not-a-number", Reserve1: "1"}),
		evs[5],
	}

	sink := &memorySink{}
	agg := NewAggregator(Config{WindowSeconds: 3600, RecomputeFrom: 7201}, sink, nil, nil)
	stats, err := agg.Run(context.Background(), typedLines(t, input...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Failed != 1 || stats.Skipped != 2 || stats.Windows != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(sink.metrics) != 1 {
		t.Fatalf("expected 1 window, got %d", len(sink.metrics))
	}
	got := sink.metrics[0]
	if got.Reserve0 == nil || *got.Reserve0 != "1000" || got.Reserve1 == nil || *got.Reserve1 != "1000" {
		t.Fatalf("reserves should keep the last good sync: %v %v", got.Reserve0, got.Reserve1)
	}
}
