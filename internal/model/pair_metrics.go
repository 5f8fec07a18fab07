package model

import "time"

// PairWindowMetrics aggregates one pair's activity over a fixed window.
// Amounts are in token units with decimals applied.
type PairWindowMetrics struct {
	ChainID        uint64    `json:"chain_id"`
	PairAddress    string    `json:"pair_address"`
	WindowSizeSecs int64     `json:"window_size_secs"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	DepositCount   uint64    `json:"deposit_count"`
	WithdrawCount  uint64    `json:"withdraw_count"`
	HarvestCount   uint64    `json:"harvest_count"`
	Volume0        string    `json:"volume0"`
	Volume1        string    `json:"volume1"`
	ProtocolFee0   string    `json:"protocol_fee0"`
	ProtocolFee1   string    `json:"protocol_fee1"`
	Yield0         string    `json:"yield0"`
	Yield1         string    `json:"yield1"`
	Reserve0       *string   `json:"reserve0,omitempty"`
	Reserve1       *string   `json:"reserve1,omitempty"`
	FeeRate0       *string   `json:"fee_rate0,omitempty"`
	FeeRate1       *string   `json:"fee_rate1,omitempty"`
	YieldAPR0      *string   `json:"yield_apr0,omitempty"`
	YieldAPR1      *string   `json:"yield_apr1,omitempty"`
	LastBlock      uint64    `json:"last_block"`
}
