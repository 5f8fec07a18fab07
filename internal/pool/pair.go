package pool

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldswap/internal/events"
	"yieldswap/internal/model"
)

const (
	// DefaultFeeBps is the per-token swap fee used when none is configured.
	DefaultFeeBps = 300
	// DefaultIdleBps is the share of each deposit kept out of the vault.
	DefaultIdleBps = 2000
	// DefaultEpochLength gates harvests to one per 30 days.
	DefaultEpochLength = 30 * 24 * time.Hour
)

// LockedLiquidityHolder receives the minimum liquidity minted on the first deposit.
var LockedLiquidityHolder = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// PairConfig holds the immutable parameters of a pair.
type PairConfig struct {
	Address     common.Address
	Factory     common.Address
	Token0      Token
	Token1      Token
	Vault0      Vault
	Vault1      Vault
	FeeBps0     uint32
	FeeBps1     uint32
	Mode        PricingMode
	IdleBps     uint32
	EpochLength time.Duration
	Fees        FeeSource
	// CreatedAt defaults to the pair clock at construction.
	CreatedAt time.Time
}

// Reserves is the accounted state returned by GetReserves.
type Reserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
	FeeBps0  uint32
	FeeBps1  uint32
}

// HarvestDetails is the per-asset yield of a harvest, in underlying units.
type HarvestDetails struct {
	Epoch  uint64
	Yield0 *big.Int
	Yield1 *big.Int
}

type pairState struct {
	reserve0      *big.Int
	reserve1      *big.Int
	protocolFee0  *big.Int
	protocolFee1  *big.Int
	lpTotalSupply *big.Int
	balances      map[common.Address]*big.Int
	allowances    map[common.Address]map[common.Address]*big.Int
	strategies    [2]strategyState
	lastEpoch     uint64
	lastHarvestAt time.Time
}

func newPairState() *pairState {
	return &pairState{
		reserve0:      new(big.Int),
		reserve1:      new(big.Int),
		protocolFee0:  new(big.Int),
		protocolFee1:  new(big.Int),
		lpTotalSupply: new(big.Int),
		balances:      make(map[common.Address]*big.Int),
		allowances:    make(map[common.Address]map[common.Address]*big.Int),
		strategies:    [2]strategyState{newStrategyState(), newStrategyState()},
	}
}

func (s *pairState) clone() *pairState {
	out := &pairState{
		reserve0:      copyBig(s.reserve0),
		reserve1:      copyBig(s.reserve1),
		protocolFee0:  copyBig(s.protocolFee0),
		protocolFee1:  copyBig(s.protocolFee1),
		lpTotalSupply: copyBig(s.lpTotalSupply),
		balances:      make(map[common.Address]*big.Int, len(s.balances)),
		allowances:    make(map[common.Address]map[common.Address]*big.Int, len(s.allowances)),
		strategies:    [2]strategyState{s.strategies[0].clone(), s.strategies[1].clone()},
		lastEpoch:     s.lastEpoch,
		lastHarvestAt: s.lastHarvestAt,
	}
	for owner, bal := range s.balances {
		out.balances[owner] = copyBig(bal)
	}
	for owner, spenders := range s.allowances {
		inner := make(map[common.Address]*big.Int, len(spenders))
		for spender, amount := range spenders {
			inner[spender] = copyBig(amount)
		}
		out.allowances[owner] = inner
	}
	return out
}

func (s *pairState) reserve(i int) *big.Int {
	if i == 0 {
		return s.reserve0
	}
	return s.reserve1
}

// Pair is a two-asset pool whose idle capital earns yield in vaults.
// Mutating calls are serialized; a call that arrives while another is in
// flight, including a re-entrant one from a token or vault, fails with
// ErrReentrant.
type Pair struct {
	cfg        PairConfig
	clock      func() time.Time
	logger     *zap.Logger
	sink       EventSink
	journal    Journal
	createdAt  time.Time
	strategies [2]strategyManager

	mu     sync.RWMutex
	locked bool
	st     *pairState
}

// NewPair validates cfg and builds an empty pair.
func NewPair(cfg PairConfig, opts ...Option) (*Pair, error) {
	if cfg.Token0 == nil || cfg.Token1 == nil {
		return nil, fmt.Errorf("%w: tokens are required", ErrInvalidConfig)
	}
	if cfg.Vault0 == nil || cfg.Vault1 == nil {
		return nil, fmt.Errorf("%w: vaults are required", ErrInvalidConfig)
	}
	if bytes.Compare(cfg.Token0.Address().Bytes(), cfg.Token1.Address().Bytes()) >= 0 {
		return nil, fmt.Errorf("%w: token0 must sort below token1", ErrInvalidConfig)
	}
	if cfg.Vault0.Asset() != cfg.Token0.Address() || cfg.Vault1.Asset() != cfg.Token1.Address() {
		return nil, fmt.Errorf("%w: vault asset does not match token", ErrInvalidConfig)
	}
	if cfg.FeeBps0 >= BpsDenominator || cfg.FeeBps1 >= BpsDenominator {
		return nil, fmt.Errorf("%w: swap fee must be below %d bps", ErrInvalidConfig, BpsDenominator)
	}
	if cfg.IdleBps > BpsDenominator {
		return nil, fmt.Errorf("%w: idle fraction above %d bps", ErrInvalidConfig, BpsDenominator)
	}
	if cfg.EpochLength <= 0 {
		return nil, fmt.Errorf("%w: epoch length must be positive", ErrInvalidConfig)
	}
	if cfg.Fees == nil {
		return nil, fmt.Errorf("%w: fee source is required", ErrInvalidConfig)
	}
	if err := cfg.Mode.validate(); err != nil {
		return nil, err
	}

	p := &Pair{
		cfg:    cfg,
		clock:  time.Now,
		logger: zap.NewNop(),
		st:     newPairState(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.createdAt = cfg.CreatedAt
	if p.createdAt.IsZero() {
		p.createdAt = p.clock()
	}
	p.strategies = [2]strategyManager{
		{pair: cfg.Address, token: cfg.Token0, vault: cfg.Vault0, idleBps: cfg.IdleBps},
		{pair: cfg.Address, token: cfg.Token1, vault: cfg.Vault1, idleBps: cfg.IdleBps},
	}
	return p, nil
}

func (p *Pair) Address() common.Address { return p.cfg.Address }
func (p *Pair) Factory() common.Address { return p.cfg.Factory }
func (p *Pair) Token0() common.Address  { return p.cfg.Token0.Address() }
func (p *Pair) Token1() common.Address  { return p.cfg.Token1.Address() }
func (p *Pair) StableSwapMode() bool    { return p.cfg.Mode.IsStable() }
func (p *Pair) Mode() PricingMode       { return p.cfg.Mode }
func (p *Pair) CreatedAt() time.Time    { return p.createdAt }

// GetReserves returns the last accounted reserves, which exclude yield
// that has not been harvested yet.
func (p *Pair) GetReserves() Reserves {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Reserves{
		Reserve0: copyBig(p.st.reserve0),
		Reserve1: copyBig(p.st.reserve1),
		FeeBps0:  p.cfg.FeeBps0,
		FeeBps1:  p.cfg.FeeBps1,
	}
}

// ProtocolFees returns swap fees owed to the factory's fee receiver.
func (p *Pair) ProtocolFees() (*big.Int, *big.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyBig(p.st.protocolFee0), copyBig(p.st.protocolFee1)
}

func (p *Pair) AssetStrategiesLength() int {
	return len(p.strategies)
}

func (p *Pair) AssetStrategyList(index int) (AssetStrategy, error) {
	if index < 0 || index >= len(p.strategies) {
		return AssetStrategy{}, fmt.Errorf("strategy index %d out of range", index)
	}
	m := p.strategies[index]
	return AssetStrategy{Underlying: m.token.Address(), Vault: m.vault.Address()}, nil
}

// VaultShares returns the vault shares the pair holds for each asset.
func (p *Pair) VaultShares() (*big.Int, *big.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyBig(p.st.strategies[0].shares), copyBig(p.st.strategies[1].shares)
}

// Snapshot exports the accounted state for persistence.
func (p *Pair) Snapshot() model.PairSnapshot {
	p.mu.RLock()
	st := p.st.clone()
	p.mu.RUnlock()
	now := p.clock()

	snap := model.PairSnapshot{
		Address:        p.cfg.Address.Hex(),
		Factory:        p.cfg.Factory.Hex(),
		Token0:         p.Token0().Hex(),
		Token1:         p.Token1().Hex(),
		StableSwapMode: p.StableSwapMode(),
		FeeBps0:        p.cfg.FeeBps0,
		FeeBps1:        p.cfg.FeeBps1,
		Reserve0:       st.reserve0.String(),
		Reserve1:       st.reserve1.String(),
		LpTotalSupply:  st.lpTotalSupply.String(),
		ProtocolFee0:   st.protocolFee0.String(),
		ProtocolFee1:   st.protocolFee1.String(),
		CurrentEpoch:   p.epochAt(now, st),
		CreatedAt:      uint64(p.createdAt.Unix()),
		Timestamp:      uint64(now.Unix()),
	}
	if !st.lastHarvestAt.IsZero() {
		snap.LastHarvestTs = uint64(st.lastHarvestAt.Unix())
	}
	for i, m := range p.strategies {
		snap.Strategies = append(snap.Strategies, model.StrategySnapshot{
			Underlying:    m.token.Address().Hex(),
			Vault:         m.vault.Address().Hex(),
			Shares:        st.strategies[i].shares.String(),
			BaselineValue: st.strategies[i].baseline.String(),
			PendingYield:  st.strategies[i].pending.String(),
		})
	}
	return snap
}

// txn is the working copy of one mutating call. Events are held back
// until the call commits.
type txn struct {
	st     *pairState
	events []events.Event
}

func (tx *txn) emit(ev events.Event) {
	tx.events = append(tx.events, ev)
}

// execute runs fn against a copy of the pair state and commits it only
// when fn succeeds. On failure the journal, if any, is reverted too.
func (p *Pair) execute(op string, fn func(tx *txn) error) error {
	p.mu.Lock()
	if p.locked {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrReentrant)
	}
	p.locked = true
	tx := &txn{st: p.st.clone()}
	p.mu.Unlock()

	snapshot := 0
	if p.journal != nil {
		snapshot = p.journal.Snapshot()
	}

	err := fn(tx)

	p.mu.Lock()
	if err == nil {
		p.st = tx.st
	}
	p.locked = false
	p.mu.Unlock()

	if err != nil {
		if p.journal != nil {
			p.journal.RevertToSnapshot(snapshot)
		}
		p.logger.Debug("pair call reverted", zap.String("op", op), zap.String("pair", p.cfg.Address.Hex()), zap.Error(err))
		return err
	}

	if p.sink != nil {
		for _, ev := range tx.events {
			p.sink.Emit(ev)
		}
	}
	return nil
}

func (p *Pair) syncEvent(st *pairState) events.Sync {
	return events.Sync{Pair: p.cfg.Address, Reserve0: copyBig(st.reserve0), Reserve1: copyBig(st.reserve1)}
}

func (p *Pair) token(i int) Token {
	if i == 0 {
		return p.cfg.Token0
	}
	return p.cfg.Token1
}

// payOut tops up idle balance from the vault if needed, then transfers to recipient.
func (p *Pair) payOut(tx *txn, i int, recipient common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := p.strategies[i].ensureIdle(&tx.st.strategies[i], amount); err != nil {
		return err
	}
	if err := p.token(i).Transfer(p.cfg.Address, recipient, amount); err != nil {
		return external("transfer", err)
	}
	return nil
}
