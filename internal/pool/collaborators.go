package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"yieldswap/internal/events"
)

// Token is the transferable-balance asset a pair trades. Caller identity
// is passed explicitly where an EVM token would use msg.sender.
type Token interface {
	Address() common.Address
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
	Transfer(from, to common.Address, amount *big.Int) error
	BalanceOf(owner common.Address) *big.Int
	Approve(owner, spender common.Address, amount *big.Int) error
}

// Vault is a yield-bearing wrapper around one underlying token. The
// exchange rate never decreases.
type Vault interface {
	Address() common.Address
	Asset() common.Address
	// Deposit pulls assets from owner (owner must have approved the vault)
	// and mints shares to owner.
	Deposit(owner common.Address, assets *big.Int) (*big.Int, error)
	// Withdraw burns shares from owner and pays the underlying to owner.
	Withdraw(owner common.Address, shares *big.Int) (*big.Int, error)
	ExchangeRate() *big.Int
	ConvertToAssets(shares *big.Int) *big.Int
	// PreviewWithdraw returns the shares needed to receive assets, rounded up.
	PreviewWithdraw(assets *big.Int) *big.Int
	BalanceOf(holder common.Address) *big.Int
}

// FeeSource exposes the protocol fee configuration owned by the factory.
type FeeSource interface {
	FeeInfo() (uint32, common.Address)
}

// Journal reverts collaborator state when an operation fails midway.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// EventSink receives events after an operation commits.
type EventSink interface {
	Emit(ev events.Event)
}
