package factory

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"yieldswap/internal/events"
	"yieldswap/internal/pool"
)

const (
	// OwnerFeeMax is the upper bound of the receiver fee share.
	OwnerFeeMax = 10000
	// DefaultReceiverFeeShare is the share of swap fees paid to the fee receiver.
	DefaultReceiverFeeShare = 5000
)

// Factory creates pairs and owns the protocol fee configuration they read.
// Pair creation is permissionless; fee settings are owner-only.
type Factory struct {
	address     common.Address
	owner       common.Address
	logger      *zap.Logger
	clock       func() time.Time
	sink        pool.EventSink
	journal     pool.Journal
	swapFeeBps  uint32
	idleBps     uint32
	epochLength time.Duration

	mu               sync.RWMutex
	feeReceiver      common.Address
	receiverFeeShare uint32
	pairs            map[common.Address]map[common.Address]*pool.Pair
	byAddress        map[common.Address]*pool.Pair
	allPairs         []*pool.Pair
}

// New builds a factory owned by its deployer. The factory address is the
// deployer's first contract address unless WithAddress overrides it.
func New(owner, feeReceiver common.Address, opts ...Option) (*Factory, error) {
	f := &Factory{
		address:          crypto.CreateAddress(owner, 0),
		owner:            owner,
		logger:           zap.NewNop(),
		clock:            time.Now,
		swapFeeBps:       pool.DefaultFeeBps,
		idleBps:          pool.DefaultIdleBps,
		epochLength:      pool.DefaultEpochLength,
		feeReceiver:      feeReceiver,
		receiverFeeShare: DefaultReceiverFeeShare,
		pairs:            make(map[common.Address]map[common.Address]*pool.Pair),
		byAddress:        make(map[common.Address]*pool.Pair),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.receiverFeeShare > OwnerFeeMax {
		return nil, fmt.Errorf("new factory: receiver fee share %d: %w", f.receiverFeeShare, pool.ErrFeeShareOutOfRange)
	}
	return f, nil
}

func (f *Factory) Address() common.Address { return f.address }
func (f *Factory) Owner() common.Address   { return f.owner }

// decimaler is implemented by tokens that know their precision.
type decimaler interface {
	Decimals() uint8
}

// CreatePair sorts the tokens, matches each vault to its token and
// registers a new pair. Either token order finds the same pair later.
func (f *Factory) CreatePair(caller common.Address, tokenA, tokenB pool.Token, vaultA, vaultB pool.Vault, stable bool) (*pool.Pair, error) {
	if tokenA == nil || tokenB == nil || vaultA == nil || vaultB == nil {
		return nil, fmt.Errorf("create pair: %w: tokens and vaults are required", pool.ErrInvalidToken)
	}
	addrA, addrB := tokenA.Address(), tokenB.Address()
	if addrA == addrB {
		return nil, fmt.Errorf("create pair: %w: identical tokens %s", pool.ErrInvalidToken, addrA.Hex())
	}
	if addrA == (common.Address{}) || addrB == (common.Address{}) {
		return nil, fmt.Errorf("create pair: %w: zero address", pool.ErrInvalidToken)
	}
	token0, token1, vault0, vault1 := tokenA, tokenB, vaultA, vaultB
	if bytes.Compare(addrA.Bytes(), addrB.Bytes()) > 0 {
		token0, token1, vault0, vault1 = tokenB, tokenA, vaultB, vaultA
	}

	mode := pool.ConstantProductMode()
	if stable {
		mode = pool.StableMode(pool.StableParams{
			Decimals0: tokenDecimals(token0),
			Decimals1: tokenDecimals(token1),
		})
	}

	f.mu.Lock()
	if _, exists := f.pairs[token0.Address()][token1.Address()]; exists {
		f.mu.Unlock()
		return nil, fmt.Errorf("create pair %s/%s: %w", token0.Address().Hex(), token1.Address().Hex(), pool.ErrPairExists)
	}
	addr := PairAddress(f.address, token0.Address(), token1.Address(), stable)
	pair, err := pool.NewPair(pool.PairConfig{
		Address:     addr,
		Factory:     f.address,
		Token0:      token0,
		Token1:      token1,
		Vault0:      vault0,
		Vault1:      vault1,
		FeeBps0:     f.swapFeeBps,
		FeeBps1:     f.swapFeeBps,
		Mode:        mode,
		IdleBps:     f.idleBps,
		EpochLength: f.epochLength,
		Fees:        f,
	},
		pool.WithClock(f.clock),
		pool.WithLogger(f.logger.With(zap.String("pair", addr.Hex()))),
		pool.WithEventSink(f.sink),
		pool.WithJournal(f.journal),
	)
	if err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("create pair: %w", err)
	}
	f.register(token0.Address(), token1.Address(), pair)
	f.register(token1.Address(), token0.Address(), pair)
	f.byAddress[addr] = pair
	f.allPairs = append(f.allPairs, pair)
	index := uint64(len(f.allPairs))
	f.mu.Unlock()

	f.logger.Debug("pair created",
		zap.String("pair", addr.Hex()),
		zap.String("token0", token0.Address().Hex()),
		zap.String("token1", token1.Address().Hex()),
		zap.Bool("stable", stable),
		zap.String("caller", caller.Hex()),
	)
	if f.sink != nil {
		f.sink.Emit(events.PairCreated{
			Factory: f.address,
			Token0:  token0.Address(),
			Token1:  token1.Address(),
			Pair:    addr,
			Vault0:  vault0.Address(),
			Vault1:  vault1.Address(),
			Stable:  stable,
			Index:   index,
		})
	}
	return pair, nil
}

func (f *Factory) register(a, b common.Address, pair *pool.Pair) {
	inner := f.pairs[a]
	if inner == nil {
		inner = make(map[common.Address]*pool.Pair)
		f.pairs[a] = inner
	}
	inner[b] = pair
}

// GetPair looks up a pair by its tokens in either order.
func (f *Factory) GetPair(tokenA, tokenB common.Address) (*pool.Pair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pair, ok := f.pairs[tokenA][tokenB]
	return pair, ok
}

// Pair looks up a pair by its address.
func (f *Factory) Pair(addr common.Address) (*pool.Pair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pair, ok := f.byAddress[addr]
	return pair, ok
}

func (f *Factory) AllPairs(index int) (*pool.Pair, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if index < 0 || index >= len(f.allPairs) {
		return nil, fmt.Errorf("pair index %d out of range (%d pairs)", index, len(f.allPairs))
	}
	return f.allPairs[index], nil
}

func (f *Factory) AllPairsLength() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.allPairs)
}

// FeeInfo returns the receiver's share of swap fees and the receiver.
func (f *Factory) FeeInfo() (uint32, common.Address) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.receiverFeeShare, f.feeReceiver
}

func (f *Factory) FeeReceiver() common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.feeReceiver
}

func (f *Factory) SetFeeReceiver(caller, receiver common.Address) error {
	if caller != f.owner {
		return fmt.Errorf("set fee receiver: %w", pool.ErrUnauthorized)
	}
	f.mu.Lock()
	prev := f.feeReceiver
	f.feeReceiver = receiver
	f.mu.Unlock()
	f.logger.Info("fee receiver updated", zap.String("from", prev.Hex()), zap.String("to", receiver.Hex()))
	return nil
}

func (f *Factory) SetReceiverFeeShare(caller common.Address, bps uint32) error {
	if caller != f.owner {
		return fmt.Errorf("set receiver fee share: %w", pool.ErrUnauthorized)
	}
	if bps > OwnerFeeMax {
		return fmt.Errorf("set receiver fee share %d: %w", bps, pool.ErrFeeShareOutOfRange)
	}
	f.mu.Lock()
	prev := f.receiverFeeShare
	f.receiverFeeShare = bps
	f.mu.Unlock()
	f.logger.Info("receiver fee share updated", zap.Uint32("from", prev), zap.Uint32("to", bps))
	return nil
}

func tokenDecimals(token pool.Token) uint8 {
	if d, ok := token.(decimaler); ok {
		return d.Decimals()
	}
	return 18
}
