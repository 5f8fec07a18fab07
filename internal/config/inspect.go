package config

import (
	"time"

	"github.com/spf13/pflag"
)

// InspectConfig holds configuration for reading deployed tokens and vaults.
type InspectConfig struct {
	RPCURL       string
	Tokens       []string
	Vaults       []string
	Holder       string
	Block        uint64
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
	})
	if err != nil {
		return InspectConfig{}, err
	}
	return InspectConfig{
		RPCURL:       v.GetString("rpc"),
		Tokens:       getStringSlice(v, "token"),
		Vaults:       getStringSlice(v, "vault"),
		Holder:       v.GetString("holder"),
		Block:        v.GetUint64("block"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
