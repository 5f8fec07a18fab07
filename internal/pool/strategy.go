package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetStrategy pairs a pooled token with the vault its idle capital is
// deployed into.
type AssetStrategy struct {
	Underlying common.Address
	Vault      common.Address
}

// strategyState tracks the pair's position in one vault. baseline is the
// underlying value of shares at the last checkpoint; pending is yield
// observed since the last harvest but not yet credited to reserves.
type strategyState struct {
	shares   *big.Int
	baseline *big.Int
	pending  *big.Int
}

func newStrategyState() strategyState {
	return strategyState{shares: new(big.Int), baseline: new(big.Int), pending: new(big.Int)}
}

func (s strategyState) clone() strategyState {
	return strategyState{shares: copyBig(s.shares), baseline: copyBig(s.baseline), pending: copyBig(s.pending)}
}

// strategyManager moves one asset between the pair's idle balance and its vault.
type strategyManager struct {
	pair    common.Address
	token   Token
	vault   Vault
	idleBps uint32
}

// deployable is the part of a fresh deposit that goes into the vault.
func (m strategyManager) deployable(amount *big.Int) *big.Int {
	return mulDiv(amount, big.NewInt(int64(BpsDenominator-m.idleBps)), bigBps)
}

// checkpoint moves value growth since the last baseline into pending.
func (m strategyManager) checkpoint(s *strategyState) {
	current := m.vault.ConvertToAssets(s.shares)
	if current.Cmp(s.baseline) > 0 {
		s.pending.Add(s.pending, new(big.Int).Sub(current, s.baseline))
	}
	s.baseline = current
}

// absorbLoss charges vault rounding losses against unharvested yield so
// accounted reserves stay covered by what the pair actually holds.
func absorbLoss(s *strategyState, loss *big.Int) {
	if loss.Sign() <= 0 {
		return
	}
	s.pending.Sub(s.pending, minBig(loss, s.pending))
}

func (m strategyManager) deploy(s *strategyState, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	m.checkpoint(s)
	if err := m.token.Approve(m.pair, m.vault.Address(), amount); err != nil {
		return external("approve vault", err)
	}
	minted, err := m.vault.Deposit(m.pair, amount)
	if err != nil {
		return external("vault deposit", err)
	}
	if minted == nil || minted.Sign() < 0 {
		return external("vault deposit", fmt.Errorf("invalid shares minted"))
	}
	s.shares.Add(s.shares, minted)
	before := s.baseline
	s.baseline = m.vault.ConvertToAssets(s.shares)
	added := new(big.Int).Sub(s.baseline, before)
	absorbLoss(s, new(big.Int).Sub(amount, added))
	return nil
}

// pull withdraws at least amount of the underlying from the vault into
// the pair's idle balance.
func (m strategyManager) pull(s *strategyState, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	m.checkpoint(s)
	shares := m.vault.PreviewWithdraw(amount)
	if shares.Cmp(s.shares) > 0 {
		shares = new(big.Int).Set(s.shares)
	}
	if shares.Sign() == 0 {
		return external("vault withdraw", fmt.Errorf("no shares to cover %s", amount))
	}
	got, err := m.vault.Withdraw(m.pair, shares)
	if err != nil {
		return external("vault withdraw", err)
	}
	if got == nil || got.Cmp(amount) < 0 {
		return external("vault withdraw", fmt.Errorf("vault returned %v, need %s", got, amount))
	}
	s.shares.Sub(s.shares, shares)
	before := s.baseline
	s.baseline = m.vault.ConvertToAssets(s.shares)
	removed := new(big.Int).Sub(before, s.baseline)
	absorbLoss(s, new(big.Int).Sub(removed, got))
	return nil
}

// ensureIdle tops up the pair's direct balance to at least amount.
func (m strategyManager) ensureIdle(s *strategyState, amount *big.Int) error {
	idle := m.token.BalanceOf(m.pair)
	if idle.Cmp(amount) >= 0 {
		return nil
	}
	return m.pull(s, new(big.Int).Sub(amount, idle))
}

// accrued is the yield a harvest would credit right now. It does not mutate s.
func (m strategyManager) accrued(s strategyState) *big.Int {
	out := copyBig(s.pending)
	current := m.vault.ConvertToAssets(s.shares)
	if current.Cmp(s.baseline) > 0 {
		out.Add(out, new(big.Int).Sub(current, s.baseline))
	}
	return out
}

// harvest returns accrued yield and resets the baseline.
func (m strategyManager) harvest(s *strategyState) *big.Int {
	m.checkpoint(s)
	out := s.pending
	s.pending = new(big.Int)
	return out
}

func external(call string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExternalCallFailed, call, err)
}
