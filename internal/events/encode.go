package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"yieldswap/internal/model"
)

// LogMeta positions an encoded event inside the simulated chain.
type LogMeta struct {
	ChainID     uint64
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint64
	Timestamp   uint64
	RecordedAt  string
}

// Encode packs an event into EVM log topics and data.
func Encode(ev Event) ([]common.Hash, []byte, error) {
	parsed, err := PairABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pair abi: %w", err)
	}
	event, ok := parsed.Events[ev.EventName()]
	if !ok {
		return nil, nil, fmt.Errorf("unknown event: %s", ev.EventName())
	}

	var indexed []common.Hash
	var values []interface{}
	switch e := ev.(type) {
	case PairCreated:
		indexed = []common.Hash{addressTopic(e.Token0), addressTopic(e.Token1)}
		values = []interface{}{e.Pair, e.Vault0, e.Vault1, e.Stable, new(big.Int).SetUint64(e.Index)}
	case Deposit:
		indexed = []common.Hash{addressTopic(e.Sender), addressTopic(e.Recipient)}
		values = []interface{}{orZero(e.Amount0), orZero(e.Amount1), orZero(e.Liquidity)}
	case Withdraw:
		indexed = []common.Hash{addressTopic(e.Sender), addressTopic(e.Recipient)}
		values = []interface{}{orZero(e.Amount0), orZero(e.Amount1), orZero(e.Liquidity)}
	case Swap:
		indexed = []common.Hash{addressTopic(e.Sender), addressTopic(e.Recipient), addressTopic(e.TokenIn)}
		values = []interface{}{orZero(e.AmountIn), orZero(e.AmountOut), orZero(e.ProtocolFee)}
	case Sync:
		values = []interface{}{orZero(e.Reserve0), orZero(e.Reserve1)}
	case Harvest:
		indexed = []common.Hash{addressTopic(e.Caller), common.BigToHash(new(big.Int).SetUint64(e.Epoch))}
		values = []interface{}{orZero(e.Yield0), orZero(e.Yield1)}
	case ProtocolFeesCollected:
		indexed = []common.Hash{addressTopic(e.Receiver)}
		values = []interface{}{orZero(e.Amount0), orZero(e.Amount1)}
	case Transfer:
		indexed = []common.Hash{addressTopic(e.From), addressTopic(e.To)}
		values = []interface{}{orZero(e.Value)}
	default:
		return nil, nil, fmt.Errorf("unsupported event type %T", ev)
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", event.Name, err)
	}
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, event.ID)
	topics = append(topics, indexed...)
	return topics, data, nil
}

// ToLogRecord encodes an event as a storable log record.
func ToLogRecord(ev Event, meta LogMeta) (model.LogRecord, error) {
	topics, data, err := Encode(ev)
	if err != nil {
		return model.LogRecord{}, err
	}
	topicHex := make([]string, 0, len(topics))
	for _, topic := range topics {
		topicHex = append(topicHex, topic.Hex())
	}
	return model.LogRecord{
		ChainID:     meta.ChainID,
		BlockNumber: meta.BlockNumber,
		TxHash:      meta.TxHash.Hex(),
		LogIndex:    meta.LogIndex,
		Address:     ev.Emitter().Hex(),
		Topics:      topicHex,
		Data:        hexutil.Encode(data),
		Timestamp:   meta.Timestamp,
		RecordedAt:  meta.RecordedAt,
	}, nil
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
