package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"yieldswap/internal/model"
)

func TestDecoderSwap(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pair := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")
	tokenIn := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	record, err := ToLogRecord(Swap{
		Pair:        pair,
		Sender:      sender,
		Recipient:   recipient,
		TokenIn:     tokenIn,
		AmountIn:    big.NewInt(100),
		AmountOut:   big.NewInt(88),
		ProtocolFee: big.NewInt(1),
	}, LogMeta{ChainID: 31337, BlockNumber: 7, LogIndex: 3, Timestamp: 1700000000})
	if err != nil {
		t.Fatalf("encode swap: %v", err)
	}
	if len(record.Topics) != 4 {
		t.Fatalf("expected 4 topics, got %d", len(record.Topics))
	}
	if !decoder.CanDecode(record.Topics[0]) {
		t.Fatalf("decoder rejects swap topic0")
	}

	event, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if swap.AmountIn != "100" || swap.AmountOut != "88" || swap.ProtocolFee != "1" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() || swap.TokenIn != tokenIn.Hex() {
		t.Fatalf("address mismatch: %+v", swap)
	}
	if event.Address != pair.Hex() || event.BlockNumber != 7 || event.LogIndex != 3 {
		t.Fatalf("log position mismatch: %+v", event)
	}
}

func TestDecoderHarvestAndPairCreated(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pair := common.HexToAddress("0x9999999999999999999999999999999999999999")
	factory := common.HexToAddress("0x8888888888888888888888888888888888888888")

	harvestLog, err := ToLogRecord(Harvest{
		Pair:   pair,
		Caller: common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Epoch:  2,
		Yield0: big.NewInt(500),
		Yield1: big.NewInt(0),
	}, LogMeta{})
	if err != nil {
		t.Fatalf("encode harvest: %v", err)
	}
	event, err := decoder.Decode(harvestLog)
	if err != nil {
		t.Fatalf("decode harvest: %v", err)
	}
	harvest, ok := event.Decoded.(model.HarvestEventData)
	if !ok {
		t.Fatalf("harvest type mismatch")
	}
	if harvest.Epoch != 2 || harvest.Yield0 != "500" || harvest.Yield1 != "0" {
		t.Fatalf("harvest mismatch: %+v", harvest)
	}

	createdLog, err := ToLogRecord(PairCreated{
		Factory: factory,
		Token0:  common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Token1:  common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Pair:    pair,
		Stable:  true,
		Index:   1,
	}, LogMeta{})
	if err != nil {
		t.Fatalf("encode pair created: %v", err)
	}
	if createdLog.Address != factory.Hex() {
		t.Fatalf("emitter mismatch: %s", createdLog.Address)
	}
	event, err = decoder.Decode(createdLog)
	if err != nil {
		t.Fatalf("decode pair created: %v", err)
	}
	created, ok := event.Decoded.(model.PairCreatedEventData)
	if !ok {
		t.Fatalf("pair created type mismatch")
	}
	if created.Pair != pair.Hex() || !created.Stable || created.Index != "1" {
		t.Fatalf("pair created mismatch: %+v", created)
	}
}

func TestDecoderRejectsTruncatedTopics(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	record, err := ToLogRecord(Transfer{
		Pair:  common.HexToAddress("0x1111111111111111111111111111111111111111"),
		From:  common.Address{},
		To:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value: big.NewInt(1),
	}, LogMeta{})
	if err != nil {
		t.Fatalf("encode transfer: %v", err)
	}
	record.Topics = record.Topics[:2]
	if _, err := decoder.Decode(record); err == nil {
		t.Fatalf("expected error for missing topic")
	}
}
