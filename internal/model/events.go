package model

// PairCreatedEventData is the decoded PairCreated payload.
type PairCreatedEventData struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
	Pair   string `json:"pair"`
	Vault0 string `json:"vault0"`
	Vault1 string `json:"vault1"`
	Stable bool   `json:"stable"`
	Index  string `json:"index"`
}

// LiquidityEventData is the decoded Deposit or Withdraw payload.
type LiquidityEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Liquidity string `json:"liquidity"`
}

// SwapEventData is the decoded Swap payload.
type SwapEventData struct {
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	TokenIn     string `json:"token_in"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	ProtocolFee string `json:"protocol_fee"`
}

// SyncEventData is the decoded Sync payload.
type SyncEventData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// HarvestEventData is the decoded Harvest payload.
type HarvestEventData struct {
	Caller string `json:"caller"`
	Epoch  uint64 `json:"epoch"`
	Yield0 string `json:"yield0"`
	Yield1 string `json:"yield1"`
}

// ProtocolFeesEventData is the decoded ProtocolFeesCollected payload.
type ProtocolFeesEventData struct {
	Receiver string `json:"receiver"`
	Amount0  string `json:"amount0"`
	Amount1  string `json:"amount1"`
}

// TransferEventData is the decoded LP Transfer payload.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}
