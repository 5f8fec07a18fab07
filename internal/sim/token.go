package sim

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// TransferHook runs before a token moves balance. A non-nil error aborts
// the transfer. Hooks may call back into other contracts.
type TransferHook func(from, to common.Address, amount *big.Int) error

// Token is a journaled ERC20 ledger.
type Token struct {
	world    *World
	addr     common.Address
	symbol   string
	decimals uint8

	mu          sync.Mutex
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	totalSupply *big.Int
	hook        TransferHook
}

func NewToken(world *World, addr common.Address, symbol string, decimals uint8) *Token {
	return &Token{
		world:       world,
		addr:        addr,
		symbol:      symbol,
		decimals:    decimals,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		totalSupply: new(big.Int),
	}
}

func (t *Token) Address() common.Address { return t.addr }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

// SetHook installs a transfer hook; nil removes it.
func (t *Token) SetHook(hook TransferHook) {
	t.mu.Lock()
	t.hook = hook
	t.mu.Unlock()
}

func (t *Token) BalanceOf(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balanceLocked(owner))
}

func (t *Token) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.totalSupply)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.allowanceLocked(owner, spender))
}

// Mint creates amount out of thin air for to, like the faucet tokens used in tests.
func (t *Token) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setBalanceLocked(to, new(big.Int).Add(t.balanceLocked(to), amount))
	t.setSupplyLocked(new(big.Int).Add(t.totalSupply, amount))
	return nil
}

func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowanceLocked(owner, spender, new(big.Int).Set(amount))
	return nil
}

func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if err := t.runHook(from, to, amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moveLocked(from, to, amount)
}

func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := t.runHook(from, to, amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if spender != from {
		allowed := t.allowanceLocked(from, spender)
		if allowed.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s allows %s, need %s", ErrInsufficientAllowance, from.Hex(), allowed, amount)
		}
		t.setAllowanceLocked(from, spender, new(big.Int).Sub(allowed, amount))
	}
	return t.moveLocked(from, to, amount)
}

func (t *Token) runHook(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	hook := t.hook
	t.mu.Unlock()
	if hook == nil {
		return nil
	}
	return hook(from, to, amount)
}

func (t *Token) moveLocked(from, to common.Address, amount *big.Int) error {
	bal := t.balanceLocked(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, need %s", ErrInsufficientBalance, from.Hex(), bal, t.symbol, amount)
	}
	t.setBalanceLocked(from, new(big.Int).Sub(bal, amount))
	t.setBalanceLocked(to, new(big.Int).Add(t.balanceLocked(to), amount))
	return nil
}

func (t *Token) balanceLocked(owner common.Address) *big.Int {
	if bal, ok := t.balances[owner]; ok {
		return bal
	}
	return new(big.Int)
}

func (t *Token) allowanceLocked(owner, spender common.Address) *big.Int {
	if amount, ok := t.allowances[owner][spender]; ok {
		return amount
	}
	return new(big.Int)
}

func (t *Token) setBalanceLocked(owner common.Address, value *big.Int) {
	prev, existed := t.balances[owner]
	t.balances[owner] = value
	t.world.record(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existed {
			t.balances[owner] = prev
		} else {
			delete(t.balances, owner)
		}
	})
}

func (t *Token) setSupplyLocked(value *big.Int) {
	prev := t.totalSupply
	t.totalSupply = value
	t.world.record(func() {
		t.mu.Lock()
		t.totalSupply = prev
		t.mu.Unlock()
	})
}

func (t *Token) setAllowanceLocked(owner, spender common.Address, value *big.Int) {
	spenders := t.allowances[owner]
	if spenders == nil {
		spenders = make(map[common.Address]*big.Int)
		t.allowances[owner] = spenders
	}
	prev, existed := spenders[spender]
	spenders[spender] = value
	t.world.record(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existed {
			t.allowances[owner][spender] = prev
		} else {
			delete(t.allowances[owner], spender)
		}
	})
}
