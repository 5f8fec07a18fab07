package pool

import (
	"fmt"
	"math/big"
)

// PricingKind selects the swap curve of a pair.
type PricingKind uint8

const (
	ConstantProduct PricingKind = iota
	Stable
)

func (k PricingKind) String() string {
	switch k {
	case ConstantProduct:
		return "constant_product"
	case Stable:
		return "stable"
	default:
		return fmt.Sprintf("pricing(%d)", uint8(k))
	}
}

// StableParams fixes the stable curve at pair creation. Reserves are
// normalized to 18 decimals before the curve is evaluated.
type StableParams struct {
	Decimals0 uint8
	Decimals1 uint8
}

// PricingMode is the pair's curve, chosen once at construction.
type PricingMode struct {
	Kind   PricingKind
	Stable StableParams
}

func ConstantProductMode() PricingMode {
	return PricingMode{Kind: ConstantProduct}
}

func StableMode(params StableParams) PricingMode {
	return PricingMode{Kind: Stable, Stable: params}
}

func (m PricingMode) IsStable() bool {
	return m.Kind == Stable
}

func (m PricingMode) validate() error {
	switch m.Kind {
	case ConstantProduct:
		return nil
	case Stable:
		if m.Stable.Decimals0 > 18 || m.Stable.Decimals1 > 18 {
			return fmt.Errorf("%w: stable decimals above 18", ErrInvalidConfig)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown pricing kind %d", ErrInvalidConfig, m.Kind)
	}
}

// Quote prices amountIn against the given reserves the same way a swap
// does: fee first, then the curve. zeroForOne is true when the input is token0.
func Quote(mode PricingMode, zeroForOne bool, reserveIn, reserveOut *big.Int, feeBps uint32, amountIn *big.Int) (*big.Int, error) {
	if err := checkAmount("amount in", amountIn); err != nil {
		return nil, err
	}
	if feeBps > BpsDenominator {
		return nil, fmt.Errorf("%w: fee %d bps", ErrInvalidConfig, feeBps)
	}
	if err := mode.validate(); err != nil {
		return nil, err
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	afterFee := applyFee(amountIn, feeBps)
	out := mode.amountOut(zeroForOne, reserveIn, reserveOut, afterFee)
	if err := mode.checkInvariant(zeroForOne, reserveIn, reserveOut, afterFee, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m PricingMode) amountOut(zeroForOne bool, reserveIn, reserveOut, afterFee *big.Int) *big.Int {
	if afterFee.Sign() == 0 {
		return new(big.Int)
	}
	if m.Kind == Stable {
		return m.stableAmountOut(zeroForOne, reserveIn, reserveOut, afterFee)
	}
	// out = reserveOut * afterFee / (reserveIn + afterFee)
	denom := new(big.Int).Add(reserveIn, afterFee)
	return mulDiv(reserveOut, afterFee, denom)
}

// checkInvariant enforces that the curve value does not decrease across the swap.
func (m PricingMode) checkInvariant(zeroForOne bool, reserveIn, reserveOut, afterFee, out *big.Int) error {
	if out.Sign() < 0 || out.Cmp(reserveOut) >= 0 {
		return fmt.Errorf("%w: output %s against reserve %s", ErrInvariantViolation, out, reserveOut)
	}
	newIn := new(big.Int).Add(reserveIn, afterFee)
	newOut := new(big.Int).Sub(reserveOut, out)

	var before, after *big.Int
	if m.Kind == Stable {
		scaleIn, scaleOut := m.scales(zeroForOne)
		before = stableK(new(big.Int).Mul(reserveIn, scaleIn), new(big.Int).Mul(reserveOut, scaleOut))
		after = stableK(newIn.Mul(newIn, scaleIn), newOut.Mul(newOut, scaleOut))
	} else {
		before = new(big.Int).Mul(reserveIn, reserveOut)
		after = newIn.Mul(newIn, newOut)
	}
	if after.Cmp(before) < 0 {
		return fmt.Errorf("%w: k decreased from %s to %s", ErrInvariantViolation, before, after)
	}
	return nil
}

func (m PricingMode) scales(zeroForOne bool) (*big.Int, *big.Int) {
	s0 := decimalScale(m.Stable.Decimals0)
	s1 := decimalScale(m.Stable.Decimals1)
	if zeroForOne {
		return s0, s1
	}
	return s1, s0
}

func decimalScale(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
}

func (m PricingMode) stableAmountOut(zeroForOne bool, reserveIn, reserveOut, afterFee *big.Int) *big.Int {
	scaleIn, scaleOut := m.scales(zeroForOne)
	x0 := new(big.Int).Mul(reserveIn, scaleIn)
	y0 := new(big.Int).Mul(reserveOut, scaleOut)
	k := stableK(x0, y0)

	x := new(big.Int).Add(reserveIn, afterFee)
	x.Mul(x, scaleIn)
	y := stableY(x, k, y0)

	outNorm := new(big.Int).Sub(y0, y)
	if outNorm.Sign() <= 0 {
		return new(big.Int)
	}
	return outNorm.Quo(outNorm, scaleOut)
}

// stableK is x^3*y + x*y^3.
func stableK(x, y *big.Int) *big.Int {
	x2 := new(big.Int).Mul(x, x)
	y2 := new(big.Int).Mul(y, y)
	sum := x2.Add(x2, y2)
	xy := new(big.Int).Mul(x, y)
	return sum.Mul(sum, xy)
}

// stableY returns y at or just above the root of x^3*y + x*y^3 = k,
// stepping down from y0 with floored Newton steps. y0 must not be below
// the root, and a floored step on a convex curve never crosses it.
func stableY(x, k, y0 *big.Int) *big.Int {
	y := new(big.Int).Set(y0)
	x3 := new(big.Int).Mul(x, x)
	x3.Mul(x3, x)
	three := big.NewInt(3)

	for i := 0; i < 255; i++ {
		y2 := new(big.Int).Mul(y, y)
		// g(y) = x*y^3 + x^3*y - k
		g := new(big.Int).Mul(y2, y)
		g.Mul(g, x)
		g.Add(g, new(big.Int).Mul(x3, y))
		g.Sub(g, k)
		if g.Sign() <= 0 {
			return y
		}
		// g'(y) = 3*x*y^2 + x^3
		d := new(big.Int).Mul(three, x)
		d.Mul(d, y2)
		d.Add(d, x3)
		step := g.Quo(g, d)
		if step.Sign() == 0 {
			return y
		}
		y.Sub(y, step)
	}
	return y
}
