package sim

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const year = 365 * 24 * time.Hour

// RateScale is the fixed-point scale of Vault.ExchangeRate.
var RateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Vault is an ERC4626-style wrapper whose exchange rate grows linearly by
// interestBps per 365 days. Yield is paid from the vault's own balance
// of the asset; any remainder is minted.
type Vault struct {
	world       *World
	addr        common.Address
	asset       *Token
	interestBps uint32
	start       time.Time

	mu          sync.Mutex
	shares      map[common.Address]*big.Int
	totalShares *big.Int
}

func NewVault(world *World, addr common.Address, asset *Token, interestBps uint32) *Vault {
	return &Vault{
		world:       world,
		addr:        addr,
		asset:       asset,
		interestBps: interestBps,
		start:       world.Now(),
		shares:      make(map[common.Address]*big.Int),
		totalShares: new(big.Int),
	}
}

func (v *Vault) Address() common.Address { return v.addr }
func (v *Vault) Asset() common.Address   { return v.asset.Address() }
func (v *Vault) InterestBps() uint32     { return v.interestBps }

// ExchangeRate is assets per share scaled by RateScale. After one year it
// has grown by interestBps * 1e14.
func (v *Vault) ExchangeRate() *big.Int {
	elapsed := v.world.Now().Sub(v.start)
	if elapsed < 0 {
		elapsed = 0
	}
	growth := new(big.Int).Mul(RateScale, big.NewInt(int64(v.interestBps)))
	growth.Mul(growth, big.NewInt(int64(elapsed/time.Second)))
	growth.Quo(growth, big.NewInt(10000*int64(year/time.Second)))
	return growth.Add(growth, RateScale)
}

func (v *Vault) ConvertToAssets(shares *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(shares, v.ExchangeRate())
	return out.Quo(out, RateScale)
}

func (v *Vault) ConvertToShares(assets *big.Int) *big.Int {
	if assets == nil || assets.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(assets, RateScale)
	return out.Quo(out, v.ExchangeRate())
}

// PreviewWithdraw returns the shares needed to receive assets, rounded up.
func (v *Vault) PreviewWithdraw(assets *big.Int) *big.Int {
	if assets == nil || assets.Sign() <= 0 {
		return new(big.Int)
	}
	rate := v.ExchangeRate()
	out := new(big.Int).Mul(assets, RateScale)
	out.Add(out, rate)
	out.Sub(out, big.NewInt(1))
	return out.Quo(out, rate)
}

func (v *Vault) BalanceOf(holder common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.sharesLocked(holder))
}

func (v *Vault) TotalShares() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.totalShares)
}

// TotalAssets is the underlying value of all outstanding shares.
func (v *Vault) TotalAssets() *big.Int {
	return v.ConvertToAssets(v.TotalShares())
}

// Deposit pulls assets from owner, who must have approved the vault.
func (v *Vault) Deposit(owner common.Address, assets *big.Int) (*big.Int, error) {
	if assets == nil || assets.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	minted := v.ConvertToShares(assets)
	if minted.Sign() == 0 {
		return nil, fmt.Errorf("%w: deposit of %s mints no shares", ErrInvalidAmount, assets)
	}
	if err := v.asset.TransferFrom(v.addr, owner, v.addr, assets); err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.setSharesLocked(owner, new(big.Int).Add(v.sharesLocked(owner), minted))
	v.setTotalLocked(new(big.Int).Add(v.totalShares, minted))
	v.mu.Unlock()
	return minted, nil
}

// Withdraw burns shares from owner and pays their value in the asset.
func (v *Vault) Withdraw(owner common.Address, shares *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	assets := v.ConvertToAssets(shares)

	v.mu.Lock()
	held := v.sharesLocked(owner)
	if held.Cmp(shares) < 0 {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: %s holds %s shares, need %s", ErrInsufficientBalance, owner.Hex(), held, shares)
	}
	v.setSharesLocked(owner, new(big.Int).Sub(held, shares))
	v.setTotalLocked(new(big.Int).Sub(v.totalShares, shares))
	v.mu.Unlock()

	if cash := v.asset.BalanceOf(v.addr); cash.Cmp(assets) < 0 {
		if err := v.asset.Mint(v.addr, new(big.Int).Sub(assets, cash)); err != nil {
			return nil, err
		}
	}
	if err := v.asset.Transfer(v.addr, owner, assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func (v *Vault) sharesLocked(holder common.Address) *big.Int {
	if bal, ok := v.shares[holder]; ok {
		return bal
	}
	return new(big.Int)
}

func (v *Vault) setSharesLocked(holder common.Address, value *big.Int) {
	prev, existed := v.shares[holder]
	v.shares[holder] = value
	v.world.record(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if existed {
			v.shares[holder] = prev
		} else {
			delete(v.shares, holder)
		}
	})
}

func (v *Vault) setTotalLocked(value *big.Int) {
	prev := v.totalShares
	v.totalShares = value
	v.world.record(func() {
		v.mu.Lock()
		v.totalShares = prev
		v.mu.Unlock()
	})
}
