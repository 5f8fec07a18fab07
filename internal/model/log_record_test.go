package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLogRecordDecodesSimulatorLine(t *testing.T) {
	line := `{"chain_id":31337,"block_number":4,"tx_hash":"0xdef456","log_index":2,` +
		`"address":"0x1111111111111111111111111111111111111111","topics":["0xaaa","0xbbb"],` +
		`"data":"0xdeadbeef","timestamp":1700000000,"recorded_at":"2024-01-01T00:00:00Z"}`

	var got LogRecord
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := LogRecord{
		ChainID:     31337,
		BlockNumber: 4,
		TxHash:      "0xdef456",
		LogIndex:    2,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
		Timestamp:   1700000000,
		RecordedAt:  "2024-01-01T00:00:00Z",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decoded mismatch: %+v != %+v", got, want)
	}
}

func TestPairSnapshotFieldNames(t *testing.T) {
	snap := PairSnapshot{
		Address:    "0x01",
		Reserve0:   "10",
		Strategies: []StrategySnapshot{{Underlying: "0x02", Shares: "5"}},
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"address", "reserve0", "lp_total_supply", "current_epoch", "strategies"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing field %q in %s", key, b)
		}
	}
}
