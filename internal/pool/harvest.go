package pool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldswap/internal/events"
)

// EpochLength returns the harvest gating period fixed at creation.
func (p *Pair) EpochLength() time.Duration {
	return p.cfg.EpochLength
}

// CurrentEpoch is floor((now - createdAt) / epochLength). It never
// reports less than the last harvested epoch, even if the clock moves back.
func (p *Pair) CurrentEpoch() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.epochAt(p.clock(), p.st)
}

func (p *Pair) epochAt(now time.Time, st *pairState) uint64 {
	var epoch uint64
	if elapsed := now.Sub(p.createdAt); elapsed > 0 {
		epoch = uint64(elapsed / p.cfg.EpochLength)
	}
	if epoch < st.lastEpoch {
		return st.lastEpoch
	}
	return epoch
}

// LastHarvest returns the epoch and time of the last successful harvest.
// Epoch 0 with a zero time means no harvest has run.
func (p *Pair) LastHarvest() (uint64, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st.lastEpoch, p.st.lastHarvestAt
}

// PreviewHarvestDetails reports the yield a harvest would credit now.
func (p *Pair) PreviewHarvestDetails() HarvestDetails {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return HarvestDetails{
		Epoch:  p.epochAt(p.clock(), p.st),
		Yield0: p.strategies[0].accrued(p.st.strategies[0]),
		Yield1: p.strategies[1].accrued(p.st.strategies[1]),
	}
}

// HarvestYieldsForRecentEpoch credits vault yield accrued since the last
// harvest to reserves, at most once per epoch. Epoch 0 counts as
// harvested at creation. All yield goes to LPs.
func (p *Pair) HarvestYieldsForRecentEpoch(caller common.Address) (HarvestDetails, error) {
	var details HarvestDetails
	err := p.execute("harvest", func(tx *txn) error {
		st := tx.st
		now := p.clock()
		epoch := p.epochAt(now, st)
		if epoch <= st.lastEpoch {
			return ErrNothingToHarvest
		}

		details = HarvestDetails{Epoch: epoch}
		yields := [2]*big.Int{}
		for i := range p.strategies {
			yields[i] = p.strategies[i].harvest(&st.strategies[i])
		}
		st.reserve0.Add(st.reserve0, yields[0])
		st.reserve1.Add(st.reserve1, yields[1])
		details.Yield0, details.Yield1 = yields[0], yields[1]
		st.lastEpoch = epoch
		st.lastHarvestAt = now

		tx.emit(events.Harvest{
			Pair:   p.cfg.Address,
			Caller: caller,
			Epoch:  epoch,
			Yield0: copyBig(yields[0]),
			Yield1: copyBig(yields[1]),
		})
		tx.emit(p.syncEvent(st))
		return nil
	})
	if err != nil {
		return HarvestDetails{}, err
	}

	p.logger.Debug("harvest",
		zap.String("pair", p.cfg.Address.Hex()),
		zap.Uint64("epoch", details.Epoch),
		zap.String("yield0", details.Yield0.String()),
		zap.String("yield1", details.Yield1.String()),
	)
	return details, nil
}
