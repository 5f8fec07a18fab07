package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// QuoteConfig holds the reserves and trade priced by the quote command.
// Amounts are human-readable decimals scaled by the token decimals.
type QuoteConfig struct {
	ReserveIn   string
	ReserveOut  string
	AmountIn    string
	FeeBps      uint32
	Stable      bool
	DecimalsIn  uint8
	DecimalsOut uint8
	LogLevel    string
}

func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"fee-bps":      300,
		"decimals-in":  18,
		"decimals-out": 18,
	})
	if err != nil {
		return QuoteConfig{}, err
	}
	cfg := QuoteConfig{
		ReserveIn:  v.GetString("reserve-in"),
		ReserveOut: v.GetString("reserve-out"),
		AmountIn:   v.GetString("amount-in"),
		FeeBps:     v.GetUint32("fee-bps"),
		Stable:     v.GetBool("stable"),
		LogLevel:   v.GetString("log-level"),
	}
	for _, d := range []struct {
		key string
		dst *uint8
	}{{"decimals-in", &cfg.DecimalsIn}, {"decimals-out", &cfg.DecimalsOut}} {
		n := v.GetUint32(d.key)
		if n > 18 {
			return QuoteConfig{}, fmt.Errorf("%s %d above 18", d.key, n)
		}
		*d.dst = uint8(n)
	}
	return cfg, nil
}
