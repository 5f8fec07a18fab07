package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"yieldswap/internal/events"
	"yieldswap/internal/model"
)

// typedEventRecord is a decoded event line with the payload left raw
// until the event name is known.
type typedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
}

// pairInfo is what the aggregator learns about a pair across windows.
type pairInfo struct {
	token0, token1       common.Address
	decimals0, decimals1 uint8
	reserve0, reserve1   *big.Int
}

// Accumulator holds one pair's totals for the current window.
type Accumulator struct {
	ChainID       uint64
	PairAddress   string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	HarvestCount  uint64
	Volume0       *big.Int
	Volume1       *big.Int
	ProtocolFee0  *big.Int
	ProtocolFee1  *big.Int
	Yield0        *big.Int
	Yield1        *big.Int
	LastBlock     uint64
	LastTS        uint64
}

func NewAccumulator(record typedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:      record.ChainID,
		PairAddress:  record.Address,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Volume0:      big.NewInt(0),
		Volume1:      big.NewInt(0),
		ProtocolFee0: big.NewInt(0),
		ProtocolFee1: big.NewInt(0),
		Yield0:       big.NewInt(0),
		Yield1:       big.NewInt(0),
		LastBlock:    record.BlockNumber,
		LastTS:       record.Timestamp,
	}
}

// AddEvent folds one pair event into the window. Sync only moves the
// pair's reserves, which the aggregator tracks across windows.
func (a *Accumulator) AddEvent(record typedEventRecord, info *pairInfo) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.LastBlock = record.BlockNumber
	}

	switch record.EventName {
	case events.NameSwap:
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap, info)
	case events.NameDeposit:
		a.DepositCount++
	case events.NameWithdraw:
		a.WithdrawCount++
	case events.NameHarvest:
		var harvest model.HarvestEventData
		if err := json.Unmarshal(record.Decoded, &harvest); err != nil {
			return fmt.Errorf("decode harvest: %w", err)
		}
		yield0, err := parseBigInt(harvest.Yield0)
		if err != nil {
			return err
		}
		yield1, err := parseBigInt(harvest.Yield1)
		if err != nil {
			return err
		}
		a.Yield0.Add(a.Yield0, yield0)
		a.Yield1.Add(a.Yield1, yield1)
		a.HarvestCount++
	case events.NameSync:
		return applySync(record, info)
	}
	return nil
}

// applySync moves info to the reserves carried by a Sync record.
func applySync(record typedEventRecord, info *pairInfo) error {
	var sync model.SyncEventData
	if err := json.Unmarshal(record.Decoded, &sync); err != nil {
		return fmt.Errorf("decode sync: %w", err)
	}
	reserve0, err := parseBigInt(sync.Reserve0)
	if err != nil {
		return fmt.Errorf("sync reserve0: %w", err)
	}
	reserve1, err := parseBigInt(sync.Reserve1)
	if err != nil {
		return fmt.Errorf("sync reserve1: %w", err)
	}
	info.reserve0, info.reserve1 = reserve0, reserve1
	return nil
}

func (a *Accumulator) applySwap(swap model.SwapEventData, info *pairInfo) error {
	amountIn, err := parseBigInt(swap.AmountIn)
	if err != nil {
		return err
	}
	fee, err := parseBigInt(swap.ProtocolFee)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(swap.TokenIn) {
		return fmt.Errorf("invalid token in: %s", swap.TokenIn)
	}
	switch common.HexToAddress(swap.TokenIn) {
	case info.token0:
		a.Volume0.Add(a.Volume0, amountIn)
		a.ProtocolFee0.Add(a.ProtocolFee0, fee)
	case info.token1:
		a.Volume1.Add(a.Volume1, amountIn)
		a.ProtocolFee1.Add(a.ProtocolFee1, fee)
	default:
		return fmt.Errorf("token %s is not in pair %s", swap.TokenIn, a.PairAddress)
	}
	a.SwapCount++
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
