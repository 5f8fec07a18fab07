package model

// TokenMeta captures ERC20 metadata and, for vault tokens, the underlying asset.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Balance  string `json:"balance,omitempty"`
}

// VaultMeta is the ERC4626 view used to value a pair's vault shares.
type VaultMeta struct {
	TokenMeta
	Asset          string `json:"asset"`
	TotalAssets    string `json:"total_assets"`
	AssetsPerShare string `json:"assets_per_share"`
}
