// Package amount converts raw token integers to and from human-readable
// decimal strings.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// RatioScale is the number of fractional digits kept for rates.
const RatioScale = 18

var ErrInvalidAmount = errors.New("invalid amount")

// ParseUnits turns "1000.5" into raw units for a token with the given
// decimals. Digits beyond the token precision are rejected, not rounded.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	raw := d.Shift(int32(decimals))
	if !raw.Equal(raw.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	return raw.BigInt(), nil
}

// FormatUnits renders raw units with trailing zeros trimmed.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// Ratio returns num/denom with RatioScale digits, or "" when either side is zero.
func Ratio(num, denom *big.Int) string {
	if num == nil || denom == nil || num.Sign() == 0 || denom.Sign() == 0 {
		return ""
	}
	return decimal.NewFromBigInt(num, 0).
		DivRound(decimal.NewFromBigInt(denom, 0), RatioScale).
		StringFixed(RatioScale)
}

// APR annualizes the yield earned on principal over window.
func APR(yield, principal *big.Int, window time.Duration) string {
	if window <= 0 || yield == nil || principal == nil || principal.Sign() == 0 {
		return ""
	}
	year := decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Second))
	seconds := decimal.NewFromInt(int64(window / time.Second))
	if seconds.IsZero() {
		return ""
	}
	rate := decimal.NewFromBigInt(yield, 0).Mul(year)
	return rate.DivRound(decimal.NewFromBigInt(principal, 0).Mul(seconds), RatioScale).StringFixed(RatioScale)
}
