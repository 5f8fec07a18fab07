package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"

	"yieldswap/internal/factory"
)

// SimulateConfig holds configuration for replaying a scenario.
type SimulateConfig struct {
	Scenario            string
	Out                 string
	State               string
	PGDSN               string
	StateName           string
	ChainID             uint64
	StartTime           time.Time
	Owner               common.Address
	FeeReceiver         common.Address
	SwapFeeBps          uint32
	ReceiverFeeShareBps uint32
	IdleBps             uint32
	EpochLength         time.Duration
	InterestBps         uint32
	Decimals            uint8
	StopOnError         bool
	LogLevel            string
}

func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":                "./data/events.jsonl",
		"state":              "./data/pairs.json",
		"state-name":         "simulate",
		"chain-id":           uint64(31337),
		"start-time":         "2024-01-23T00:00:00Z",
		"owner":              "0x00000000000000000000000000000000000000d1",
		"fee-receiver":       "0x00000000000000000000000000000000000000fe",
		"swap-fee-bps":       300,
		"receiver-fee-share": 5000,
		"idle-bps":           2000,
		"epoch-length":       30 * 24 * time.Hour,
		"interest-bps":       500,
		"decimals":           18,
		"stop-on-error":      true,
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	start, err := ParseTimestamp(v.GetString("start-time"))
	if err != nil {
		return SimulateConfig{}, fmt.Errorf("parse start-time: %w", err)
	}
	owner, err := parseAddress("owner", v.GetString("owner"))
	if err != nil {
		return SimulateConfig{}, err
	}
	receiver, err := parseAddress("fee-receiver", v.GetString("fee-receiver"))
	if err != nil {
		return SimulateConfig{}, err
	}
	decimals := v.GetUint32("decimals")
	if decimals > 18 {
		return SimulateConfig{}, fmt.Errorf("decimals %d above 18", decimals)
	}
	feeShare := v.GetUint32("receiver-fee-share")
	if feeShare > factory.OwnerFeeMax {
		return SimulateConfig{}, fmt.Errorf("receiver-fee-share %d above %d", feeShare, factory.OwnerFeeMax)
	}

	return SimulateConfig{
		Scenario:            v.GetString("scenario"),
		Out:                 v.GetString("out"),
		State:               v.GetString("state"),
		PGDSN:               v.GetString("pg-dsn"),
		StateName:           v.GetString("state-name"),
		ChainID:             v.GetUint64("chain-id"),
		StartTime:           time.Unix(int64(start), 0).UTC(),
		Owner:               owner,
		FeeReceiver:         receiver,
		SwapFeeBps:          v.GetUint32("swap-fee-bps"),
		ReceiverFeeShareBps: feeShare,
		IdleBps:             v.GetUint32("idle-bps"),
		EpochLength:         v.GetDuration("epoch-length"),
		InterestBps:         v.GetUint32("interest-bps"),
		Decimals:            uint8(decimals),
		StopOnError:         v.GetBool("stop-on-error"),
		LogLevel:            v.GetString("log-level"),
	}, nil
}

func parseAddress(key, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", key, value)
	}
	return common.HexToAddress(value), nil
}
