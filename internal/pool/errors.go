package pool

import "errors"

var (
	ErrPairExists                   = errors.New("pair already exists")
	ErrInvalidToken                 = errors.New("invalid token")
	ErrInsufficientInitialLiquidity = errors.New("insufficient initial liquidity")
	ErrInsufficientLpBalance        = errors.New("insufficient lp balance")
	ErrInvariantViolation           = errors.New("invariant violation")
	ErrUnauthorized                 = errors.New("unauthorized")
	ErrFeeShareOutOfRange           = errors.New("fee share out of range")
	ErrNothingToHarvest             = errors.New("nothing to harvest")
	ErrExternalCallFailed           = errors.New("external call failed")

	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrInsufficientAllowance    = errors.New("insufficient allowance")
	ErrReentrant                = errors.New("reentrant call")
	ErrInvalidConfig            = errors.New("invalid pair config")
)
