package model

// PairSnapshot is the persisted view of a pair's accounted state.
type PairSnapshot struct {
	Address        string             `json:"address"`
	Factory        string             `json:"factory"`
	Token0         string             `json:"token0"`
	Token1         string             `json:"token1"`
	StableSwapMode bool               `json:"stable_swap_mode"`
	FeeBps0        uint32             `json:"fee_bps0"`
	FeeBps1        uint32             `json:"fee_bps1"`
	Reserve0       string             `json:"reserve0"`
	Reserve1       string             `json:"reserve1"`
	LpTotalSupply  string             `json:"lp_total_supply"`
	ProtocolFee0   string             `json:"protocol_fee0"`
	ProtocolFee1   string             `json:"protocol_fee1"`
	CurrentEpoch   uint64             `json:"current_epoch"`
	LastHarvestTs  uint64             `json:"last_harvest_ts"`
	CreatedAt      uint64             `json:"created_at"`
	Timestamp      uint64             `json:"timestamp"`
	Strategies     []StrategySnapshot `json:"strategies"`
}

// StrategySnapshot is one asset's vault position inside a pair snapshot.
type StrategySnapshot struct {
	Underlying    string `json:"underlying"`
	Vault         string `json:"vault"`
	Shares        string `json:"shares"`
	BaselineValue string `json:"baseline_value"`
	PendingYield  string `json:"pending_yield"`
}

// HarvestRecord is one successful harvest, stored for history.
type HarvestRecord struct {
	Pair      string `json:"pair"`
	Epoch     uint64 `json:"epoch"`
	Yield0    string `json:"yield0"`
	Yield1    string `json:"yield1"`
	Timestamp uint64 `json:"timestamp"`
}

// RunState is the resumable progress of a command. Cursor is the last
// processed block for sync and the number of executed steps for simulate.
type RunState struct {
	Cursor    uint64         `json:"cursor"`
	Pairs     []PairSnapshot `json:"pairs,omitempty"`
	UpdatedAt string         `json:"updated_at"`
}
