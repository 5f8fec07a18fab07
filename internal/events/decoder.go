package events

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"yieldswap/internal/model"
)

// Decoder turns stored pair/factory logs back into typed events.
type Decoder struct {
	pairABI     abi.ABI
	topicToName map[string]string
}

func NewDecoder() (*Decoder, error) {
	parsed, err := PairABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(parsed.Events))
	for name, event := range parsed.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	return &Decoder{
		pairABI:     parsed,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is a known event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid emitter address: %s", log.Address)
	}

	args, err := d.unpack(d.pairABI.Events[name], log)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case NamePairCreated:
		decoded = model.PairCreatedEventData{
			Token0: addressArg(args, "token0"),
			Token1: addressArg(args, "token1"),
			Pair:   addressArg(args, "pair"),
			Vault0: addressArg(args, "vault0"),
			Vault1: addressArg(args, "vault1"),
			Stable: boolArg(args, "stable"),
			Index:  intArg(args, "index"),
		}
	case NameDeposit, NameWithdraw:
		decoded = model.LiquidityEventData{
			Sender:    addressArg(args, "sender"),
			Recipient: addressArg(args, "to"),
			Amount0:   intArg(args, "amount0"),
			Amount1:   intArg(args, "amount1"),
			Liquidity: intArg(args, "liquidity"),
		}
	case NameSwap:
		decoded = model.SwapEventData{
			Sender:      addressArg(args, "sender"),
			Recipient:   addressArg(args, "to"),
			TokenIn:     addressArg(args, "tokenIn"),
			AmountIn:    intArg(args, "amountIn"),
			AmountOut:   intArg(args, "amountOut"),
			ProtocolFee: intArg(args, "protocolFee"),
		}
	case NameSync:
		decoded = model.SyncEventData{
			Reserve0: intArg(args, "reserve0"),
			Reserve1: intArg(args, "reserve1"),
		}
	case NameHarvest:
		epoch, ok := args["epoch"].(*big.Int)
		if !ok || !epoch.IsUint64() {
			return nil, fmt.Errorf("invalid harvest epoch")
		}
		decoded = model.HarvestEventData{
			Caller: addressArg(args, "caller"),
			Epoch:  epoch.Uint64(),
			Yield0: intArg(args, "yield0"),
			Yield1: intArg(args, "yield1"),
		}
	case NameProtocolFeesCollected:
		decoded = model.ProtocolFeesEventData{
			Receiver: addressArg(args, "receiver"),
			Amount0:  intArg(args, "amount0"),
			Amount1:  intArg(args, "amount1"),
		}
	case NameTransfer:
		decoded = model.TransferEventData{
			From:  addressArg(args, "from"),
			To:    addressArg(args, "to"),
			Value: intArg(args, "value"),
		}
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     common.HexToAddress(log.Address).Hex(),
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func (d *Decoder) unpack(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	args := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(args, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return args, nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func addressArg(args map[string]interface{}, name string) string {
	if addr, ok := args[name].(common.Address); ok {
		return addr.Hex()
	}
	return ""
}

func intArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(*big.Int); ok {
		return v.String()
	}
	return ""
}

func boolArg(args map[string]interface{}, name string) bool {
	v, _ := args[name].(bool)
	return v
}
