package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// BpsDenominator is the basis-point scale used by fees and fractions.
	BpsDenominator = 10000

	// MinimumLiquidity is locked forever on the first deposit.
	MinimumLiquidity = 1000
)

var (
	bigZero  = big.NewInt(0)
	bigBps   = big.NewInt(BpsDenominator)
	minLiqBI = big.NewInt(MinimumLiquidity)
)

// checkAmount rejects nil, non-positive and over-256-bit amounts.
func checkAmount(name string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, name)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return fmt.Errorf("%w: %s exceeds 256 bits", ErrInvalidAmount, name)
	}
	return nil
}

// checkAmountOrZero is checkAmount that also accepts zero.
func checkAmountOrZero(name string, v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidAmount, name)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return fmt.Errorf("%w: %s exceeds 256 bits", ErrInvalidAmount, name)
	}
	return nil
}

func mulDiv(a, b, denom *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, denom)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// isqrt returns floor(sqrt(v)).
func isqrt(v *big.Int) *big.Int {
	if v.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sqrt(v)
}

// applyFee returns amount * (10000 - feeBps) / 10000.
func applyFee(amount *big.Int, feeBps uint32) *big.Int {
	keep := big.NewInt(int64(BpsDenominator - feeBps))
	return mulDiv(amount, keep, bigBps)
}
