package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldswap/internal/model"
)

func call(ctx context.Context, caller Caller, target common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

// FetchTokenMeta loads decimals, symbol and name. Only decimals is
// required; symbol and name fall back to the bytes32 variant.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	meta := model.TokenMeta{Address: token.Hex()}
	parsed, err := erc20ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	legacy, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := call(ctx, caller, token, parsed, "decimals", nil)
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = asUint8(values[0]); err != nil {
		return meta, fmt.Errorf("decimals: %w", err)
	}

	for _, field := range []struct {
		method string
		dst    *string
	}{{"symbol", &meta.Symbol}, {"name", &meta.Name}} {
		if values, err := call(ctx, caller, token, parsed, field.method, nil); err == nil {
			if s, ok := values[0].(string); ok {
				*field.dst = s
			}
		} else if values, err := call(ctx, caller, token, legacy, field.method, nil); err == nil {
			if s, ok := bytes32ToString(values[0]); ok {
				*field.dst = s
			}
		} else {
			logger.Debug("token field call failed", zap.String("token", token.Hex()), zap.String("method", field.method), zap.Error(err))
		}
	}
	return meta, nil
}

// BalanceOf reads holder's balance of token. A nil block reads the latest state.
func BalanceOf(ctx context.Context, caller Caller, token, holder common.Address, block *big.Int) (*big.Int, error) {
	parsed, err := erc20ABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := call(ctx, caller, token, parsed, "balanceOf", block, holder)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// FetchVaultMeta reads an ERC4626 vault: its share token metadata, the
// underlying asset, total assets and the value of one whole share.
func FetchVaultMeta(ctx context.Context, caller Caller, vault common.Address, logger *zap.Logger) (model.VaultMeta, error) {
	tokenMeta, err := FetchTokenMeta(ctx, caller, vault, logger)
	meta := model.VaultMeta{TokenMeta: tokenMeta}
	if err != nil {
		return meta, err
	}
	parsed, err := erc4626ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc4626 abi: %w", err)
	}

	values, err := call(ctx, caller, vault, parsed, "asset", nil)
	if err != nil {
		return meta, err
	}
	asset, err := asAddress(values[0])
	if err != nil {
		return meta, fmt.Errorf("asset: %w", err)
	}
	meta.Asset = asset.Hex()

	values, err = call(ctx, caller, vault, parsed, "totalAssets", nil)
	if err != nil {
		return meta, err
	}
	total, err := asBigInt(values[0])
	if err != nil {
		return meta, fmt.Errorf("totalAssets: %w", err)
	}
	meta.TotalAssets = total.String()

	oneShare := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(meta.Decimals)), nil)
	values, err = call(ctx, caller, vault, parsed, "convertToAssets", nil, oneShare)
	if err != nil {
		return meta, err
	}
	perShare, err := asBigInt(values[0])
	if err != nil {
		return meta, fmt.Errorf("convertToAssets: %w", err)
	}
	meta.AssetsPerShare = perShare.String()
	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
