package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldswap/internal/amount"
	"yieldswap/internal/chain"
	"yieldswap/internal/config"
	"yieldswap/internal/indexer"
	"yieldswap/internal/model"
)

type inspectOutput struct {
	ChainID uint64            `json:"chain_id"`
	Block   uint64            `json:"block,omitempty"`
	Holder  string            `json:"holder,omitempty"`
	Tokens  []model.TokenMeta `json:"tokens,omitempty"`
	Vaults  []model.VaultMeta `json:"vaults,omitempty"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	tokens, err := indexer.ParseAddresses(cfg.Tokens)
	if err != nil {
		return err
	}
	vaults, err := indexer.ParseAddresses(cfg.Vaults)
	if err != nil {
		return err
	}
	if len(tokens)+len(vaults) == 0 {
		return fmt.Errorf("at least one token or vault is required")
	}
	var holder *common.Address
	if cfg.Holder != "" {
		if !common.IsHexAddress(cfg.Holder) {
			return fmt.Errorf("invalid holder address: %s", cfg.Holder)
		}
		addr := common.HexToAddress(cfg.Holder)
		holder = &addr
	}
	var block *big.Int
	if cfg.Block > 0 {
		block = new(big.Int).SetUint64(cfg.Block)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	out := inspectOutput{ChainID: chainID.Uint64(), Block: cfg.Block}
	if holder != nil {
		out.Holder = holder.Hex()
	}

	retry := func(fn func(context.Context) error) error {
		return chain.WithRetry(ctx, cfg.MaxRetries, cfg.RetryBackoff, fn)
	}
	balance := func(meta *model.TokenMeta, token common.Address) error {
		if holder == nil {
			return nil
		}
		return retry(func(ctx context.Context) error {
			bal, err := chain.BalanceOf(ctx, chainClient, token, *holder, block)
			if err != nil {
				return err
			}
			meta.Balance = amount.FormatUnits(bal, meta.Decimals)
			return nil
		})
	}

	for _, token := range tokens {
		var meta model.TokenMeta
		err := retry(func(ctx context.Context) error {
			var err error
			meta, err = chain.FetchTokenMeta(ctx, chainClient, token, logger)
			return err
		})
		if err != nil {
			return fmt.Errorf("token %s: %w", token.Hex(), err)
		}
		if err := balance(&meta, token); err != nil {
			return fmt.Errorf("balance %s: %w", token.Hex(), err)
		}
		out.Tokens = append(out.Tokens, meta)
	}

	for _, vault := range vaults {
		var meta model.VaultMeta
		err := retry(func(ctx context.Context) error {
			var err error
			meta, err = chain.FetchVaultMeta(ctx, chainClient, vault, logger)
			return err
		})
		if err != nil {
			return fmt.Errorf("vault %s: %w", vault.Hex(), err)
		}
		if err := balance(&meta.TokenMeta, vault); err != nil {
			return fmt.Errorf("balance %s: %w", vault.Hex(), err)
		}
		logger.Info("vault",
			zap.String("vault", meta.Address),
			zap.String("symbol", meta.Symbol),
			zap.String("asset", meta.Asset),
			zap.String("assets_per_share", meta.AssetsPerShare),
		)
		out.Vaults = append(out.Vaults, meta)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
