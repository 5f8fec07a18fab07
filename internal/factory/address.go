package factory

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// pairInitCodeHash stands in for the keccak of the pair creation code.
var pairInitCodeHash = crypto.Keccak256([]byte("yieldswap.Pair"))

// PairAddress derives the CREATE2 address of the pair for a sorted token
// couple. The mode is part of the salt so a stable and a volatile pair
// of the same tokens would not collide.
func PairAddress(factory, token0, token1 common.Address, stable bool) common.Address {
	return crypto.CreateAddress2(factory, pairSalt(token0, token1, stable), pairInitCodeHash)
}

func pairSalt(token0, token1 common.Address, stable bool) [32]byte {
	mode := byte(0)
	if stable {
		mode = 1
	}
	var salt [32]byte
	copy(salt[:], crypto.Keccak256(token0.Bytes(), token1.Bytes(), []byte{mode}))
	return salt
}
