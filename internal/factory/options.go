package factory

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldswap/internal/pool"
)

// Option configures a Factory.
type Option func(*Factory)

func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClock sets the time source handed to every pair for epoch accounting.
func WithClock(clock func() time.Time) Option {
	return func(f *Factory) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// WithEventSink receives PairCreated and every event of the pairs created afterwards.
func WithEventSink(sink pool.EventSink) Option {
	return func(f *Factory) {
		f.sink = sink
	}
}

// WithJournal is passed to each pair so failed calls revert token and vault state.
func WithJournal(journal pool.Journal) Option {
	return func(f *Factory) {
		f.journal = journal
	}
}

// WithSwapFee sets the per-token fee of new pairs.
func WithSwapFee(feeBps uint32) Option {
	return func(f *Factory) {
		f.swapFeeBps = feeBps
	}
}

// WithIdleBps sets the share of deposits new pairs keep out of their vaults.
func WithIdleBps(bps uint32) Option {
	return func(f *Factory) {
		f.idleBps = bps
	}
}

func WithEpochLength(d time.Duration) Option {
	return func(f *Factory) {
		if d > 0 {
			f.epochLength = d
		}
	}
}

// WithReceiverFeeShare sets the initial share of swap fees paid to the fee receiver.
func WithReceiverFeeShare(bps uint32) Option {
	return func(f *Factory) {
		f.receiverFeeShare = bps
	}
}

// WithAddress fixes the factory address, which seeds every pair address.
func WithAddress(addr common.Address) Option {
	return func(f *Factory) {
		f.address = addr
	}
}
