package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "1706000000", want: 1706000000},
		{in: " 2024-01-23T00:00:00Z ", want: 1705968000},
		{in: "yesterday", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseTimestamp(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseTimestamp(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLoadSimulateDefaults(t *testing.T) {
	cfg, err := LoadSimulate("", nil)
	if err != nil {
		t.Fatalf("LoadSimulate: %v", err)
	}
	if cfg.SwapFeeBps != 300 || cfg.ReceiverFeeShareBps != 5000 || cfg.IdleBps != 2000 {
		t.Fatalf("unexpected fee defaults: %+v", cfg)
	}
	if cfg.EpochLength != 30*24*time.Hour {
		t.Fatalf("epoch length = %s", cfg.EpochLength)
	}
	if !cfg.StartTime.Equal(time.Date(2024, 1, 23, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start time = %s", cfg.StartTime)
	}
	if cfg.Owner != common.HexToAddress("0xd1") {
		t.Fatalf("owner = %s", cfg.Owner.Hex())
	}
	if cfg.Decimals != 18 || !cfg.StopOnError || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadSimulatePrecedence(t *testing.T) {
	t.Setenv("YIELDSWAP_SWAP_FEE_BPS", "25")
	t.Setenv("YIELDSWAP_IDLE_BPS", "1000")

	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.String("scenario", "", "")
	flags.Uint32("swap-fee-bps", 300, "")
	if err := flags.Parse([]string{"--scenario=flows.jsonl", "--swap-fee-bps=30"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadSimulate("", flags)
	if err != nil {
		t.Fatalf("LoadSimulate: %v", err)
	}
	if cfg.Scenario != "flows.jsonl" {
		t.Fatalf("scenario = %q", cfg.Scenario)
	}
	if cfg.SwapFeeBps != 30 {
		t.Fatalf("flag should win over env, got %d", cfg.SwapFeeBps)
	}
	if cfg.IdleBps != 1000 {
		t.Fatalf("env should win over default, got %d", cfg.IdleBps)
	}
}

func TestLoadSimulateRejectsBadInput(t *testing.T) {
	t.Setenv("YIELDSWAP_OWNER", "not-an-address")
	if _, err := LoadSimulate("", nil); err == nil {
		t.Fatalf("expected invalid owner error")
	}
}

func TestLoadSimulateRejectsFeeShareAboveMax(t *testing.T) {
	t.Setenv("YIELDSWAP_RECEIVER_FEE_SHARE", "20000")
	if _, err := LoadSimulate("", nil); err == nil {
		t.Fatalf("expected receiver-fee-share error")
	}

	t.Setenv("YIELDSWAP_RECEIVER_FEE_SHARE", "10000")
	cfg, err := LoadSimulate("", nil)
	if err != nil {
		t.Fatalf("LoadSimulate: %v", err)
	}
	if cfg.ReceiverFeeShareBps != 10000 {
		t.Fatalf("fee share = %d", cfg.ReceiverFeeShareBps)
	}
}

func TestLoadSyncSplitsLists(t *testing.T) {
	t.Setenv("YIELDSWAP_PAIR", "0x01, 0x02,,")
	t.Setenv("YIELDSWAP_EVENT", "Swap")

	cfg, err := LoadSync("", nil)
	if err != nil {
		t.Fatalf("LoadSync: %v", err)
	}
	if !reflect.DeepEqual(cfg.Pairs, []string{"0x01", "0x02"}) {
		t.Fatalf("pairs = %v", cfg.Pairs)
	}
	if !reflect.DeepEqual(cfg.Events, []string{"Swap"}) {
		t.Fatalf("events = %v", cfg.Events)
	}
	if cfg.BatchSize != 2000 || cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadQuoteDefaults(t *testing.T) {
	cfg, err := LoadQuote("", nil)
	if err != nil {
		t.Fatalf("LoadQuote: %v", err)
	}
	if cfg.FeeBps != 300 || cfg.Stable {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadAggregate(t *testing.T) {
	t.Setenv("YIELDSWAP_WINDOW", "5m")
	t.Setenv("YIELDSWAP_RECOMPUTE_FROM", "2024-01-23T00:00:00Z")

	cfg, err := LoadAggregate("", nil)
	if err != nil {
		t.Fatalf("LoadAggregate: %v", err)
	}
	if cfg.Window != 5*time.Minute || cfg.RecomputeFrom != 1705968000 || cfg.BatchSize != 1000 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("YIELDSWAP_WINDOW", "500ms")
	if _, err := LoadAggregate("", nil); err == nil {
		t.Fatalf("expected error for sub-second window")
	}
}
