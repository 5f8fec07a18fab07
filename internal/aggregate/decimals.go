package aggregate

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldswap/internal/chain"
)

// TokenDecimalsCache caches token decimals by address. Without a caller,
// or when the call fails, tokens get the fallback precision.
type TokenDecimalsCache struct {
	mu       sync.RWMutex
	data     map[common.Address]uint8
	caller   chain.Caller
	fallback uint8
	logger   *zap.Logger
}

func NewTokenDecimalsCache(caller chain.Caller, fallback uint8, logger *zap.Logger) *TokenDecimalsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenDecimalsCache{
		data:     make(map[common.Address]uint8),
		caller:   caller,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *TokenDecimalsCache) Get(address common.Address) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[address]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *TokenDecimalsCache) Set(address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[address] = decimals
	c.mu.Unlock()
}

// Resolve returns cached decimals or loads them over RPC.
func (c *TokenDecimalsCache) Resolve(ctx context.Context, token common.Address) uint8 {
	if decimals, ok := c.Get(token); ok {
		return decimals
	}
	decimals := c.fallback
	if c.caller != nil {
		meta, err := chain.FetchTokenMeta(ctx, c.caller, token, c.logger)
		if err != nil {
			c.logger.Warn("token decimals", zap.String("token", token.Hex()), zap.Error(err))
		} else {
			decimals = meta.Decimals
		}
	}
	c.Set(token, decimals)
	return decimals
}
