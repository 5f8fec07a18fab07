package scenario

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"yieldswap/internal/amount"
	"yieldswap/internal/events"
	"yieldswap/internal/factory"
	"yieldswap/internal/model"
	"yieldswap/internal/pool"
	"yieldswap/internal/sim"
	"yieldswap/internal/snapshot"
	"yieldswap/internal/storage"
)

// lpDecimals is the precision of pair LP amounts in scripts.
const lpDecimals = 18

// Config fixes the simulated chain and the defaults applied to new
// tokens, vaults and pairs.
type Config struct {
	ChainID             uint64
	Start               time.Time
	Owner               common.Address
	FeeReceiver         common.Address
	SwapFeeBps          uint32
	ReceiverFeeShareBps uint32
	IdleBps             uint32
	EpochLength         time.Duration
	InterestBps         uint32
	Decimals            uint8
	StopOnError         bool
}

// Result summarizes a run.
type Result struct {
	Steps    int
	Failed   int
	Events   int
	Harvests []model.HarvestRecord
	Pairs    []model.PairSnapshot
}

// Runner executes steps one at a time. Every step is atomic: a failing
// step leaves tokens, vaults and pairs as they were.
type Runner struct {
	cfg      Config
	world    *sim.World
	recorder *events.Recorder
	factory  *factory.Factory
	sink     storage.Storage
	store    snapshot.Store
	logger   *zap.Logger

	tokens   map[string]*sim.Token
	byAddr   map[common.Address]*sim.Token
	vaults   map[string]*sim.Vault
	harvests []model.HarvestRecord
}

// NewRunner builds a fresh world and factory. sink and store may be nil.
func NewRunner(cfg Config, sink storage.Storage, store snapshot.Store, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	world := sim.NewWorld(cfg.Start)
	recorder := events.NewRecorder()
	f, err := factory.New(cfg.Owner, cfg.FeeReceiver,
		factory.WithLogger(logger.Named("factory")),
		factory.WithClock(world.Now),
		factory.WithEventSink(recorder),
		factory.WithJournal(world),
		factory.WithSwapFee(cfg.SwapFeeBps),
		factory.WithIdleBps(cfg.IdleBps),
		factory.WithEpochLength(cfg.EpochLength),
		factory.WithReceiverFeeShare(cfg.ReceiverFeeShareBps),
	)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		world:    world,
		recorder: recorder,
		factory:  f,
		sink:     sink,
		store:    store,
		logger:   logger,
		tokens:   make(map[string]*sim.Token),
		byAddr:   make(map[common.Address]*sim.Token),
		vaults:   make(map[string]*sim.Vault),
	}, nil
}

func (r *Runner) World() *sim.World          { return r.world }
func (r *Runner) Factory() *factory.Factory { return r.factory }

func (r *Runner) Token(name string) (*sim.Token, bool) {
	t, ok := r.tokens[name]
	return t, ok
}

func (r *Runner) Vault(name string) (*sim.Vault, bool) {
	v, ok := r.vaults[name]
	return v, ok
}

// Run executes steps in order and saves the final pair snapshots.
func (r *Runner) Run(ctx context.Context, steps []Step) (Result, error) {
	var result Result
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		block := uint64(i + 1)
		result.Steps++

		err := r.world.Atomic(func() error { return r.apply(step) })
		err = r.checkExpect(step, err)
		if err != nil {
			result.Failed++
			r.recorder.Drain()
			r.logger.Warn("step failed",
				zap.Int("step", i+1),
				zap.Int("line", step.line),
				zap.String("op", step.Op),
				zap.String("pair", step.Pair),
				zap.Error(err),
			)
			if r.cfg.StopOnError {
				return result, fmt.Errorf("step %d (line %d, %s): %w", i+1, step.line, step.Op, err)
			}
			continue
		}

		n, err := r.flush(step, block)
		if err != nil {
			return result, err
		}
		result.Events += n
		r.logger.Debug("step done",
			zap.Int("step", i+1),
			zap.String("op", step.Op),
			zap.String("pair", step.Pair),
			zap.Int("events", n),
		)
	}

	result.Harvests = append(result.Harvests, r.harvests...)
	result.Pairs = r.Snapshots()
	if r.store != nil {
		state := model.RunState{Cursor: uint64(result.Steps), Pairs: result.Pairs}
		if err := r.store.Save(ctx, state); err != nil {
			return result, fmt.Errorf("save snapshots: %w", err)
		}
	}

	r.logger.Info("scenario complete",
		zap.Int("steps", result.Steps),
		zap.Int("failed", result.Failed),
		zap.Int("events", result.Events),
		zap.Int("pairs", len(result.Pairs)),
		zap.Int("harvests", len(result.Harvests)),
	)
	return result, nil
}

// Snapshots exports every pair in creation order.
func (r *Runner) Snapshots() []model.PairSnapshot {
	n := r.factory.AllPairsLength()
	out := make([]model.PairSnapshot, 0, n)
	for i := 0; i < n; i++ {
		p, err := r.factory.AllPairs(i)
		if err != nil {
			break
		}
		out = append(out, p.Snapshot())
	}
	return out
}

func (r *Runner) checkExpect(step Step, err error) error {
	if step.Expect == "" {
		return err
	}
	want := expectedErrors[step.Expect]
	if err == nil {
		return fmt.Errorf("expected %s, call succeeded", step.Expect)
	}
	if !errors.Is(err, want) {
		return fmt.Errorf("expected %s, got: %w", step.Expect, err)
	}
	r.logger.Debug("expected failure", zap.Int("line", step.line), zap.String("op", step.Op), zap.Error(err))
	return nil
}

// flush encodes the events of a committed step as logs of one block.
func (r *Runner) flush(step Step, block uint64) (int, error) {
	evs := r.recorder.Drain()
	if len(evs) == 0 || r.sink == nil {
		return len(evs), nil
	}

	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], block)
	now := r.world.Now()
	meta := events.LogMeta{
		ChainID:     r.cfg.ChainID,
		BlockNumber: block,
		TxHash:      crypto.Keccak256Hash(prefix[:], step.raw),
		Timestamp:   uint64(now.Unix()),
		RecordedAt:  now.UTC().Format(time.RFC3339),
	}
	records := make([]model.LogRecord, 0, len(evs))
	for idx, ev := range evs {
		meta.LogIndex = uint64(idx)
		record, err := events.ToLogRecord(ev, meta)
		if err != nil {
			return 0, fmt.Errorf("encode %s: %w", ev.EventName(), err)
		}
		records = append(records, record)
	}
	if err := r.sink.PutLogBatch(records); err != nil {
		return 0, fmt.Errorf("write logs: %w", err)
	}
	return len(records), nil
}

func (r *Runner) apply(step Step) error {
	switch step.Op {
	case OpToken:
		return r.addToken(step)
	case OpVault:
		return r.addVault(step)
	case OpMint:
		token, err := r.token(step.Token)
		if err != nil {
			return err
		}
		amt, err := amount.ParseUnits(step.Amount, token.Decimals())
		if err != nil {
			return err
		}
		return token.Mint(r.actor(step.To), amt)
	case OpApprove:
		return r.approve(step)
	case OpApproveLP:
		p, err := r.pair(step.Pair)
		if err != nil {
			return err
		}
		lp, err := amount.ParseUnits(step.Amount, lpDecimals)
		if err != nil {
			return err
		}
		return p.Approve(r.caller(step), r.actor(step.Spender), lp)
	case OpCreatePair:
		return r.createPair(step)
	case OpDeposit:
		return r.deposit(step)
	case OpWithdraw:
		p, err := r.pair(step.Pair)
		if err != nil {
			return err
		}
		lp, err := amount.ParseUnits(step.Amount, lpDecimals)
		if err != nil {
			return err
		}
		caller := r.caller(step)
		if step.From != "" {
			owner := r.actor(step.From)
			_, _, err = p.WithdrawFrom(caller, owner, r.recipient(step, caller), lp)
			return err
		}
		_, _, err = p.Withdraw(caller, r.recipient(step, caller), lp)
		return err
	case OpSwap:
		p, err := r.pair(step.Pair)
		if err != nil {
			return err
		}
		token, err := r.token(step.Token)
		if err != nil {
			return err
		}
		amt, err := amount.ParseUnits(step.Amount, token.Decimals())
		if err != nil {
			return err
		}
		caller := r.caller(step)
		_, err = p.Swap(caller, amt, token.Address(), r.recipient(step, caller), nil)
		return err
	case OpAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("advance: duration %s must be positive", d)
		}
		r.world.Advance(d)
		return nil
	case OpHarvest:
		p, err := r.pair(step.Pair)
		if err != nil {
			return err
		}
		details, err := p.HarvestYieldsForRecentEpoch(r.caller(step))
		if err != nil {
			return err
		}
		r.harvests = append(r.harvests, model.HarvestRecord{
			Pair:      p.Address().Hex(),
			Epoch:     details.Epoch,
			Yield0:    details.Yield0.String(),
			Yield1:    details.Yield1.String(),
			Timestamp: uint64(r.world.Now().Unix()),
		})
		return nil
	case OpCollect:
		p, err := r.pair(step.Pair)
		if err != nil {
			return err
		}
		_, _, err = p.CollectProtocolFees(r.caller(step))
		return err
	case OpTransferLP:
		p, err := r.pair(step.Pair)
		if err != nil {
			return err
		}
		lp, err := amount.ParseUnits(step.Amount, lpDecimals)
		if err != nil {
			return err
		}
		return p.Transfer(r.caller(step), r.actor(step.To), lp)
	case OpSetFeeShare:
		if step.Bps == nil {
			return fmt.Errorf("%s: bps is required", step.Op)
		}
		return r.factory.SetReceiverFeeShare(r.caller(step), *step.Bps)
	case OpSetFeeReceiver:
		return r.factory.SetFeeReceiver(r.caller(step), r.actor(step.Receiver))
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (r *Runner) addToken(step Step) error {
	if step.Name == "" {
		return fmt.Errorf("token: name is required")
	}
	if _, ok := r.tokens[step.Name]; ok {
		return fmt.Errorf("token %s already defined", step.Name)
	}
	addr, err := r.address(step.Address, "token:"+step.Name)
	if err != nil {
		return err
	}
	if _, ok := r.byAddr[addr]; ok {
		return fmt.Errorf("token %s: address %s already used", step.Name, addr.Hex())
	}
	decimals := r.cfg.Decimals
	if step.Decimals != nil {
		decimals = *step.Decimals
	}
	token := sim.NewToken(r.world, addr, step.Name, decimals)
	r.tokens[step.Name] = token
	r.byAddr[addr] = token
	return nil
}

func (r *Runner) addVault(step Step) error {
	if step.Name == "" {
		return fmt.Errorf("vault: name is required")
	}
	if _, ok := r.vaults[step.Name]; ok {
		return fmt.Errorf("vault %s already defined", step.Name)
	}
	asset, err := r.token(step.Asset)
	if err != nil {
		return err
	}
	addr, err := r.address(step.Address, "vault:"+step.Name)
	if err != nil {
		return err
	}
	interest := r.cfg.InterestBps
	if step.InterestBps != nil {
		interest = *step.InterestBps
	}
	r.vaults[step.Name] = sim.NewVault(r.world, addr, asset, interest)
	return nil
}

func (r *Runner) approve(step Step) error {
	token, err := r.token(step.Token)
	if err != nil {
		return err
	}
	var spender common.Address
	if step.Pair != "" {
		p, err := r.pair(step.Pair)
		if err != nil {
			return err
		}
		spender = p.Address()
	} else {
		spender = r.actor(step.Spender)
	}
	var amt *big.Int
	if strings.EqualFold(step.Amount, "max") {
		amt = new(uint256.Int).SetAllOne().ToBig()
	} else if amt, err = amount.ParseUnits(step.Amount, token.Decimals()); err != nil {
		return err
	}
	return token.Approve(r.caller(step), spender, amt)
}

func (r *Runner) createPair(step Step) error {
	tokenA, err := r.token(step.Token)
	if err != nil {
		return err
	}
	tokenB, err := r.token(step.TokenB)
	if err != nil {
		return err
	}
	vaultA, err := r.vault(step.Vault)
	if err != nil {
		return err
	}
	vaultB, err := r.vault(step.VaultB)
	if err != nil {
		return err
	}
	p, err := r.factory.CreatePair(r.caller(step), tokenA, tokenB, vaultA, vaultB, step.Stable)
	if err != nil {
		return err
	}
	r.logger.Info("pair created",
		zap.String("pair", p.Address().Hex()),
		zap.String("tokens", step.Token+"/"+step.TokenB),
		zap.Bool("stable", step.Stable),
	)
	return nil
}

func (r *Runner) deposit(step Step) error {
	p, err := r.pair(step.Pair)
	if err != nil {
		return err
	}
	amounts := make([]*big.Int, 2)
	for i, addr := range []common.Address{p.Token0(), p.Token1()} {
		token := r.byAddr[addr]
		raw, ok := step.Amounts[token.Symbol()]
		if !ok {
			return fmt.Errorf("deposit: missing amount for %s", token.Symbol())
		}
		if amounts[i], err = amount.ParseUnits(raw, token.Decimals()); err != nil {
			return err
		}
	}
	caller := r.caller(step)
	_, err = p.Deposit(caller, r.recipient(step, caller), amounts[0], amounts[1])
	return err
}

func (r *Runner) token(name string) (*sim.Token, error) {
	token, ok := r.tokens[name]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", name)
	}
	return token, nil
}

func (r *Runner) vault(name string) (*sim.Vault, error) {
	vault, ok := r.vaults[name]
	if !ok {
		return nil, fmt.Errorf("unknown vault %q", name)
	}
	return vault, nil
}

// pair resolves "A/B" in either token order.
func (r *Runner) pair(ref string) (*pool.Pair, error) {
	names := strings.Split(ref, "/")
	if len(names) != 2 {
		return nil, fmt.Errorf("pair reference %q must be TOKENA/TOKENB", ref)
	}
	a, err := r.token(strings.TrimSpace(names[0]))
	if err != nil {
		return nil, err
	}
	b, err := r.token(strings.TrimSpace(names[1]))
	if err != nil {
		return nil, err
	}
	p, ok := r.factory.GetPair(a.Address(), b.Address())
	if !ok {
		return nil, fmt.Errorf("no pair for %s", ref)
	}
	return p, nil
}

// caller defaults to the factory owner.
func (r *Runner) caller(step Step) common.Address {
	if step.Caller == "" {
		return r.cfg.Owner
	}
	return r.actor(step.Caller)
}

func (r *Runner) recipient(step Step, caller common.Address) common.Address {
	if step.To == "" {
		return caller
	}
	return r.actor(step.To)
}

func (r *Runner) actor(ref string) common.Address {
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref)
	}
	return derivedAddress("actor:" + ref)
}

func (r *Runner) address(ref, seed string) (common.Address, error) {
	if ref == "" {
		return derivedAddress(seed), nil
	}
	if !common.IsHexAddress(ref) {
		return common.Address{}, fmt.Errorf("invalid address %q", ref)
	}
	return common.HexToAddress(ref), nil
}

func derivedAddress(seed string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(seed))[12:])
}
