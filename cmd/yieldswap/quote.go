package main

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldswap/internal/amount"
	"yieldswap/internal/config"
	"yieldswap/internal/pool"
)

type quoteOutput struct {
	Mode       string `json:"mode"`
	FeeBps     uint32 `json:"fee_bps"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out"`
	RawOut     string `json:"raw_amount_out"`
	Price      string `json:"price"`
	ReserveIn  string `json:"reserve_in_after"`
	ReserveOut string `json:"reserve_out_after"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reserveIn, err := amount.ParseUnits(cfg.ReserveIn, cfg.DecimalsIn)
	if err != nil {
		return fmt.Errorf("reserve-in: %w", err)
	}
	reserveOut, err := amount.ParseUnits(cfg.ReserveOut, cfg.DecimalsOut)
	if err != nil {
		return fmt.Errorf("reserve-out: %w", err)
	}
	amountIn, err := amount.ParseUnits(cfg.AmountIn, cfg.DecimalsIn)
	if err != nil {
		return fmt.Errorf("amount-in: %w", err)
	}

	mode := pool.ConstantProductMode()
	if cfg.Stable {
		mode = pool.StableMode(pool.StableParams{Decimals0: cfg.DecimalsIn, Decimals1: cfg.DecimalsOut})
	}
	out, err := pool.Quote(mode, true, reserveIn, reserveOut, cfg.FeeBps, amountIn)
	if err != nil {
		return err
	}
	logger.Debug("quote",
		zap.String("mode", mode.Kind.String()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", out.String()),
	)

	// price in output tokens per input token, decimals removed
	priceNum := new(big.Int).Mul(out, pow10(cfg.DecimalsIn))
	priceDen := new(big.Int).Mul(amountIn, pow10(cfg.DecimalsOut))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(quoteOutput{
		Mode:       mode.Kind.String(),
		FeeBps:     cfg.FeeBps,
		AmountIn:   amount.FormatUnits(amountIn, cfg.DecimalsIn),
		AmountOut:  amount.FormatUnits(out, cfg.DecimalsOut),
		RawOut:     out.String(),
		Price:      amount.Ratio(priceNum, priceDen),
		ReserveIn:  amount.FormatUnits(new(big.Int).Add(reserveIn, amountIn), cfg.DecimalsIn),
		ReserveOut: amount.FormatUnits(new(big.Int).Sub(reserveOut, out), cfg.DecimalsOut),
	})
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
