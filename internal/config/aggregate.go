package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for rolling typed events into windows.
type AggregateConfig struct {
	In            string
	Out           string
	PGDSN         string
	RPCURL        string
	Window        time.Duration
	BatchSize     int
	StateFile     string
	RecomputeFrom uint64
	Decimals      uint8
	LogLevel      string
}

func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"in":         "./data/typed_events.jsonl",
		"out":        "./data/pair_metrics.jsonl",
		"window":     "1h",
		"batch-size": 1000,
		"decimals":   18,
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	window := v.GetDuration("window")
	if window < time.Second {
		return AggregateConfig{}, fmt.Errorf("window must be at least 1s, got %q", v.GetString("window"))
	}
	recomputeFrom, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse recompute-from: %w", err)
	}
	decimals := v.GetUint32("decimals")
	if decimals > 18 {
		return AggregateConfig{}, fmt.Errorf("decimals %d above 18", decimals)
	}

	return AggregateConfig{
		In:            v.GetString("in"),
		Out:           v.GetString("out"),
		PGDSN:         v.GetString("pg-dsn"),
		RPCURL:        v.GetString("rpc"),
		Window:        window,
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: recomputeFrom,
		Decimals:      uint8(decimals),
		LogLevel:      v.GetString("log-level"),
	}, nil
}
