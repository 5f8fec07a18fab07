package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldswap/internal/events"
)

// Deposit pulls amount0/amount1 from caller and mints LP units to
// recipient. The first deposit locks MinimumLiquidity forever. Later
// deposits mint against the limiting asset; the excess of the other is
// kept by the pool.
func (p *Pair) Deposit(caller, recipient common.Address, amount0, amount1 *big.Int) (*big.Int, error) {
	if err := checkAmount("amount0", amount0); err != nil {
		return nil, err
	}
	if err := checkAmount("amount1", amount1); err != nil {
		return nil, err
	}

	var minted *big.Int
	err := p.execute("deposit", func(tx *txn) error {
		st := tx.st
		if st.lpTotalSupply.Sign() == 0 {
			liquidity := isqrt(new(big.Int).Mul(amount0, amount1))
			liquidity.Sub(liquidity, minLiqBI)
			if liquidity.Sign() <= 0 {
				return ErrInsufficientInitialLiquidity
			}
			p.mint(tx, LockedLiquidityHolder, minLiqBI)
			minted = liquidity
		} else {
			if st.reserve0.Sign() == 0 || st.reserve1.Sign() == 0 {
				return fmt.Errorf("%w: pool has an empty reserve", ErrInsufficientLiquidity)
			}
			minted = minBig(
				mulDiv(amount0, st.lpTotalSupply, st.reserve0),
				mulDiv(amount1, st.lpTotalSupply, st.reserve1),
			)
			if minted.Sign() == 0 {
				return fmt.Errorf("%w: deposit mints no liquidity", ErrInvalidAmount)
			}
		}
		p.mint(tx, recipient, minted)
		st.reserve0.Add(st.reserve0, amount0)
		st.reserve1.Add(st.reserve1, amount1)

		for i, amount := range []*big.Int{amount0, amount1} {
			if err := p.token(i).TransferFrom(p.cfg.Address, caller, p.cfg.Address, amount); err != nil {
				return external("transferFrom", err)
			}
		}
		for i, amount := range []*big.Int{amount0, amount1} {
			m := p.strategies[i]
			if err := m.deploy(&st.strategies[i], m.deployable(amount)); err != nil {
				return err
			}
		}

		tx.emit(events.Deposit{
			Pair:      p.cfg.Address,
			Sender:    caller,
			Recipient: recipient,
			Amount0:   copyBig(amount0),
			Amount1:   copyBig(amount1),
			Liquidity: copyBig(minted),
		})
		tx.emit(p.syncEvent(st))
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("deposit",
		zap.String("pair", p.cfg.Address.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
		zap.String("liquidity", minted.String()),
	)
	return minted, nil
}

// Withdraw burns lp units held by caller and pays the proportional share
// of both reserves to recipient.
func (p *Pair) Withdraw(caller, recipient common.Address, lp *big.Int) (*big.Int, *big.Int, error) {
	return p.withdraw("withdraw", caller, caller, recipient, lp)
}

// WithdrawFrom burns lp units of owner on behalf of caller, spending the
// LP allowance owner granted to caller.
func (p *Pair) WithdrawFrom(caller, owner, recipient common.Address, lp *big.Int) (*big.Int, *big.Int, error) {
	return p.withdraw("withdrawFrom", caller, owner, recipient, lp)
}

func (p *Pair) withdraw(op string, caller, owner, recipient common.Address, lp *big.Int) (*big.Int, *big.Int, error) {
	if err := checkAmount("lp amount", lp); err != nil {
		return nil, nil, err
	}

	var out0, out1 *big.Int
	err := p.execute(op, func(tx *txn) error {
		st := tx.st
		if caller != owner {
			if err := spendAllowance(st, owner, caller, lp); err != nil {
				return err
			}
		}
		if err := checkUnlocked(owner); err != nil {
			return err
		}
		if balanceOf(st, owner).Cmp(lp) < 0 {
			return ErrInsufficientLpBalance
		}
		out0 = mulDiv(lp, st.reserve0, st.lpTotalSupply)
		out1 = mulDiv(lp, st.reserve1, st.lpTotalSupply)
		if out0.Sign() == 0 && out1.Sign() == 0 {
			return fmt.Errorf("%w: withdraw pays nothing", ErrInvalidAmount)
		}
		if err := p.burn(tx, owner, lp); err != nil {
			return err
		}
		st.reserve0.Sub(st.reserve0, out0)
		st.reserve1.Sub(st.reserve1, out1)

		// Pull vault shortfalls for both assets before any user transfer.
		for i, amount := range []*big.Int{out0, out1} {
			if err := p.strategies[i].ensureIdle(&st.strategies[i], amount); err != nil {
				return err
			}
		}
		for i, amount := range []*big.Int{out0, out1} {
			if err := p.payOut(tx, i, recipient, amount); err != nil {
				return err
			}
		}

		tx.emit(events.Withdraw{
			Pair:      p.cfg.Address,
			Sender:    caller,
			Recipient: recipient,
			Amount0:   copyBig(out0),
			Amount1:   copyBig(out1),
			Liquidity: copyBig(lp),
		})
		tx.emit(p.syncEvent(st))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	p.logger.Debug(op,
		zap.String("pair", p.cfg.Address.Hex()),
		zap.String("owner", owner.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("liquidity", lp.String()),
		zap.String("amount0", out0.String()),
		zap.String("amount1", out1.String()),
	)
	return out0, out1, nil
}

// BalanceOf returns the LP balance of owner.
func (p *Pair) BalanceOf(owner common.Address) *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyBig(balanceOf(p.st, owner))
}

// TotalSupply returns the outstanding LP supply, including the locked minimum.
func (p *Pair) TotalSupply() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyBig(p.st.lpTotalSupply)
}

func (p *Pair) Allowance(owner, spender common.Address) *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyBig(allowance(p.st, owner, spender))
}

// Transfer moves LP units from caller to to.
func (p *Pair) Transfer(caller, to common.Address, amount *big.Int) error {
	if err := checkAmountOrZero("lp amount", amount); err != nil {
		return err
	}
	return p.execute("transfer", func(tx *txn) error {
		return p.move(tx, caller, to, amount)
	})
}

// Approve sets spender's allowance over owner's LP units.
func (p *Pair) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := checkAmountOrZero("allowance", amount); err != nil {
		return err
	}
	return p.execute("approve", func(tx *txn) error {
		spenders := tx.st.allowances[owner]
		if spenders == nil {
			spenders = make(map[common.Address]*big.Int)
			tx.st.allowances[owner] = spenders
		}
		spenders[spender] = copyBig(amount)
		return nil
	})
}

// TransferFrom moves LP units on behalf of from, spending spender's allowance.
func (p *Pair) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmountOrZero("lp amount", amount); err != nil {
		return err
	}
	return p.execute("transferFrom", func(tx *txn) error {
		if err := spendAllowance(tx.st, from, spender, amount); err != nil {
			return err
		}
		return p.move(tx, from, to, amount)
	})
}

func (p *Pair) move(tx *txn, from, to common.Address, amount *big.Int) error {
	if err := checkUnlocked(from); err != nil {
		return err
	}
	bal := balanceOf(tx.st, from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientLpBalance
	}
	tx.st.balances[from] = new(big.Int).Sub(bal, amount)
	tx.st.balances[to] = new(big.Int).Add(balanceOf(tx.st, to), amount)
	tx.emit(events.Transfer{Pair: p.cfg.Address, From: from, To: to, Value: copyBig(amount)})
	return nil
}

func (p *Pair) mint(tx *txn, to common.Address, amount *big.Int) {
	tx.st.balances[to] = new(big.Int).Add(balanceOf(tx.st, to), amount)
	tx.st.lpTotalSupply = new(big.Int).Add(tx.st.lpTotalSupply, amount)
	tx.emit(events.Transfer{Pair: p.cfg.Address, To: to, Value: copyBig(amount)})
}

func (p *Pair) burn(tx *txn, from common.Address, amount *big.Int) error {
	if err := checkUnlocked(from); err != nil {
		return err
	}
	bal := balanceOf(tx.st, from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientLpBalance
	}
	tx.st.balances[from] = new(big.Int).Sub(bal, amount)
	tx.st.lpTotalSupply = new(big.Int).Sub(tx.st.lpTotalSupply, amount)
	tx.emit(events.Transfer{Pair: p.cfg.Address, From: from, Value: copyBig(amount)})
	return nil
}

// checkUnlocked refuses to move units out of the minimum liquidity lock.
func checkUnlocked(from common.Address) error {
	if from == LockedLiquidityHolder {
		return fmt.Errorf("%w: minimum liquidity is locked", ErrInsufficientLpBalance)
	}
	return nil
}

func spendAllowance(st *pairState, owner, spender common.Address, amount *big.Int) error {
	allowed := allowance(st, owner, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if spenders := st.allowances[owner]; spenders != nil {
		spenders[spender] = new(big.Int).Sub(allowed, amount)
	}
	return nil
}

func balanceOf(st *pairState, owner common.Address) *big.Int {
	if bal, ok := st.balances[owner]; ok {
		return bal
	}
	return bigZero
}

func allowance(st *pairState, owner, spender common.Address) *big.Int {
	if amount, ok := st.allowances[owner][spender]; ok {
		return amount
	}
	return bigZero
}
