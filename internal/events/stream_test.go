package events

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"yieldswap/internal/model"
)

type streamCollector struct {
	events  []model.TypedEvent
	errs    []model.DecodeError
	batches int
}

func (c *streamCollector) PutTypedEvents(evs []model.TypedEvent) error {
	if len(evs) > 0 {
		c.batches++
	}
	c.events = append(c.events, evs...)
	return nil
}

func (c *streamCollector) PutDecodeErrors(errs []model.DecodeError) error {
	c.errs = append(c.errs, errs...)
	return nil
}

func streamInput(t *testing.T) *bytes.Buffer {
	t.Helper()
	pair := common.HexToAddress("0x1111111111111111111111111111111111111111")
	swap, err := ToLogRecord(Swap{
		Pair:        pair,
		Sender:      common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Recipient:   common.HexToAddress("0x3333333333333333333333333333333333333333"),
		TokenIn:     common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		AmountIn:    big.NewInt(100),
		AmountOut:   big.NewInt(88),
		ProtocolFee: big.NewInt(1),
	}, LogMeta{ChainID: 31337, BlockNumber: 1})
	if err != nil {
		t.Fatalf("encode swap: %v", err)
	}
	sync, err := ToLogRecord(Sync{Pair: pair, Reserve0: big.NewInt(10), Reserve1: big.NewInt(20)}, LogMeta{ChainID: 31337, BlockNumber: 1, LogIndex: 1})
	if err != nil {
		t.Fatalf("encode sync: %v", err)
	}
	unknown := swap
	unknown.Topics = []string{"0x" + strings.Repeat("0", 64)}
	noTopics := swap
	noTopics.Topics = nil
	noTopics.BlockNumber = 9

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, record := range []model.LogRecord{swap, sync, unknown} {
		if err := enc.Encode(record); err != nil {
			t.Fatalf("encode record %d: %v", i, err)
		}
	}
	buf.WriteString("\nnot json\n")
	if err := enc.Encode(noTopics); err != nil {
		t.Fatalf("encode record: %v", err)
	}
	return &buf
}

func TestDecodeStream(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	sink := &streamCollector{}
	stats, err := decoder.DecodeStream(context.Background(), streamInput(t), nil, 1, sink)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}
	want := StreamStats{Total: 5, Decoded: 2, Skipped: 1, Failed: 2}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
	if sink.batches != 2 {
		t.Fatalf("expected one batch per event at batch size 1, got %d", sink.batches)
	}
	if sink.events[0].EventName != NameSwap || sink.events[1].EventName != NameSync {
		t.Fatalf("decoded order: %s %s", sink.events[0].EventName, sink.events[1].EventName)
	}
	if len(sink.errs) != 2 {
		t.Fatalf("expected 2 decode errors, got %d", len(sink.errs))
	}
	if sink.errs[0].Line != 5 || sink.errs[1].Line != 6 || sink.errs[1].BlockNumber != 9 {
		t.Fatalf("error positions: %+v", sink.errs)
	}
}

func TestDecodeStreamKeepsSelectedEvents(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	only, err := Topic0s(NameSync)
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	sink := &streamCollector{}
	stats, err := decoder.DecodeStream(context.Background(), streamInput(t), only, 0, sink)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}
	if stats.Decoded != 1 || stats.Skipped != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(sink.events) != 1 || sink.events[0].EventName != NameSync {
		t.Fatalf("expected only the sync event, got %+v", sink.events)
	}
}
