package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"yieldswap/internal/events"
	"yieldswap/internal/model"
	"yieldswap/internal/snapshot"
)

type fakeSource struct {
	latest   uint64
	logs     []types.Log
	failures int
	queries  []BlockRange
}

func (f *fakeSource) ChainID(context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*12, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rpc unavailable")
	}
	f.queries = append(f.queries, BlockRange{From: from, To: to})
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

type memoryStorage struct {
	records []model.LogRecord
}

func (m *memoryStorage) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

func syncLog(t *testing.T, pair common.Address, block uint64, index uint) types.Log {
	t.Helper()
	topics, data, err := events.Encode(events.Sync{Pair: pair, Reserve0: big.NewInt(10), Reserve1: big.NewInt(20)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return types.Log{
		Address:     pair,
		Topics:      topics,
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

func TestRunnerSyncsAndCheckpoints(t *testing.T) {
	pair := common.HexToAddress("0x00000000000000000000000000000000000a1b2c")
	source := &fakeSource{
		latest:   20,
		failures: 1,
		logs: []types.Log{
			syncLog(t, pair, 3, 0),
			syncLog(t, pair, 3, 0),
			syncLog(t, pair, 15, 1),
		},
	}
	sink := &memoryStorage{}
	checkpoint := &snapshot.FileStore{Path: filepath.Join(t.TempDir(), "sync.json")}
	topics, err := ParseEvents(nil)
	if err != nil {
		t.Fatalf("topics: %v", err)
	}

	runner := NewRunner(RunConfig{
		FromBlock:    1,
		Addresses:    []common.Address{pair},
		Topic0:       topics,
		BatchSize:    10,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, source, sink, checkpoint, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.records) != 2 {
		t.Fatalf("records: got %d want 2 (duplicate dropped)", len(sink.records))
	}
	rec := sink.records[1]
	if rec.ChainID != 31337 || rec.BlockNumber != 15 || rec.Timestamp != 1_700_000_180 || rec.Address != pair.Hex() {
		t.Fatalf("record: got %+v", rec)
	}

	state, ok, err := checkpoint.Load(context.Background())
	if err != nil || !ok || state.Cursor != 20 {
		t.Fatalf("checkpoint: state=%+v ok=%v err=%v", state, ok, err)
	}

	// A second run resumes after the checkpoint and finds nothing new.
	source.latest = 25
	source.queries = nil
	runner = NewRunner(RunConfig{FromBlock: 1, Addresses: []common.Address{pair}, BatchSize: 10}, source, sink, checkpoint, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(source.queries) != 1 || source.queries[0] != (BlockRange{From: 21, To: 25}) {
		t.Fatalf("resumed queries: %+v", source.queries)
	}
}

func TestParseEventsRejectsUnknown(t *testing.T) {
	if _, err := ParseEvents([]string{"Swap", "Mint"}); err == nil {
		t.Fatalf("expected error for unknown event")
	}
	topics, err := ParseEvents([]string{" Swap ", ""})
	if err != nil || len(topics) != 1 {
		t.Fatalf("topics: %v err=%v", topics, err)
	}
}
