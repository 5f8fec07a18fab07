package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldswap/internal/events"
)

type swapQuote struct {
	in       int
	out      int
	afterFee *big.Int
	amount   *big.Int
}

func (p *Pair) quote(st *pairState, tokenIn common.Address, amountIn *big.Int) (swapQuote, error) {
	var q swapQuote
	switch tokenIn {
	case p.Token0():
		q.in, q.out = 0, 1
	case p.Token1():
		q.in, q.out = 1, 0
	default:
		return q, fmt.Errorf("%w: %s", ErrInvalidToken, tokenIn.Hex())
	}
	if err := checkAmount("amount in", amountIn); err != nil {
		return q, err
	}

	reserveIn, reserveOut := st.reserve(q.in), st.reserve(q.out)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return q, ErrInsufficientLiquidity
	}
	fee := p.cfg.FeeBps0
	if q.in == 1 {
		fee = p.cfg.FeeBps1
	}
	q.afterFee = applyFee(amountIn, fee)
	q.amount = p.cfg.Mode.amountOut(q.in == 0, reserveIn, reserveOut, q.afterFee)
	if q.amount.Sign() == 0 {
		return q, ErrInsufficientOutputAmount
	}
	if err := p.cfg.Mode.checkInvariant(q.in == 0, reserveIn, reserveOut, q.afterFee, q.amount); err != nil {
		return q, err
	}
	return q, nil
}

// PreviewAmountOut prices a swap against the current reserves without
// changing state.
func (p *Pair) PreviewAmountOut(tokenIn common.Address, amountIn *big.Int) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, err := p.quote(p.st, tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	return q.amount, nil
}

// Swap sells amountIn of tokenIn from caller and sends the output token
// to recipient. data is accepted for call-surface compatibility and is
// not interpreted.
func (p *Pair) Swap(caller common.Address, amountIn *big.Int, tokenIn, recipient common.Address, data []byte) (*big.Int, error) {
	_ = data

	var out, protocolFee *big.Int
	err := p.execute("swap", func(tx *txn) error {
		st := tx.st
		q, err := p.quote(st, tokenIn, amountIn)
		if err != nil {
			return err
		}
		out = q.amount

		shareBps, _ := p.cfg.Fees.FeeInfo()
		if shareBps > BpsDenominator {
			return fmt.Errorf("%w: receiver share %d bps", ErrFeeShareOutOfRange, shareBps)
		}
		fee := new(big.Int).Sub(amountIn, q.afterFee)
		protocolFee = mulDiv(fee, big.NewInt(int64(shareBps)), bigBps)

		reserveIn, reserveOut := st.reserve(q.in), st.reserve(q.out)
		reserveIn.Add(reserveIn, amountIn)
		reserveIn.Sub(reserveIn, protocolFee)
		reserveOut.Sub(reserveOut, out)
		if q.in == 0 {
			st.protocolFee0.Add(st.protocolFee0, protocolFee)
		} else {
			st.protocolFee1.Add(st.protocolFee1, protocolFee)
		}

		if err := p.token(q.in).TransferFrom(p.cfg.Address, caller, p.cfg.Address, amountIn); err != nil {
			return external("transferFrom", err)
		}
		if err := p.payOut(tx, q.out, recipient, out); err != nil {
			return err
		}

		tx.emit(events.Swap{
			Pair:        p.cfg.Address,
			Sender:      caller,
			Recipient:   recipient,
			TokenIn:     tokenIn,
			AmountIn:    copyBig(amountIn),
			AmountOut:   copyBig(out),
			ProtocolFee: copyBig(protocolFee),
		})
		tx.emit(p.syncEvent(st))
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("swap",
		zap.String("pair", p.cfg.Address.Hex()),
		zap.String("token_in", tokenIn.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", out.String()),
		zap.String("protocol_fee", protocolFee.String()),
	)
	return out, nil
}

// CollectProtocolFees pays accrued protocol swap fees to the factory's
// current fee receiver. Anyone may trigger it.
func (p *Pair) CollectProtocolFees(caller common.Address) (*big.Int, *big.Int, error) {
	var fee0, fee1 *big.Int
	var receiver common.Address
	err := p.execute("collect", func(tx *txn) error {
		st := tx.st
		_, receiver = p.cfg.Fees.FeeInfo()
		if receiver == (common.Address{}) {
			return fmt.Errorf("%w: fee receiver not set", ErrInvalidConfig)
		}
		fee0, fee1 = st.protocolFee0, st.protocolFee1
		st.protocolFee0, st.protocolFee1 = new(big.Int), new(big.Int)

		for i, amount := range []*big.Int{fee0, fee1} {
			if err := p.strategies[i].ensureIdle(&st.strategies[i], amount); err != nil {
				return err
			}
		}
		for i, amount := range []*big.Int{fee0, fee1} {
			if err := p.payOut(tx, i, receiver, amount); err != nil {
				return err
			}
		}
		tx.emit(events.ProtocolFeesCollected{
			Pair:     p.cfg.Address,
			Receiver: receiver,
			Amount0:  copyBig(fee0),
			Amount1:  copyBig(fee1),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	p.logger.Debug("protocol fees collected",
		zap.String("pair", p.cfg.Address.Hex()),
		zap.String("caller", caller.Hex()),
		zap.String("receiver", receiver.Hex()),
		zap.String("fee0", fee0.String()),
		zap.String("fee1", fee1.String()),
	)
	return fee0, fee1, nil
}
