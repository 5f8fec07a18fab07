// Package scenario replays JSONL scripts of token, vault, factory and
// pair calls against a simulated world.
package scenario

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"yieldswap/internal/pool"
)

const (
	OpToken          = "token"
	OpVault          = "vault"
	OpMint           = "mint"
	OpApprove        = "approve"
	OpApproveLP      = "approve_lp"
	OpCreatePair     = "create_pair"
	OpDeposit        = "deposit"
	OpWithdraw       = "withdraw"
	OpSwap           = "swap"
	OpAdvance        = "advance"
	OpHarvest        = "harvest"
	OpCollect        = "collect"
	OpTransferLP     = "transfer_lp"
	OpSetFeeShare    = "set_fee_share"
	OpSetFeeReceiver = "set_fee_receiver"
)

// Step is one scripted call. Tokens and vaults are referenced by name,
// pairs as "TOKENA/TOKENB", actors by hex address or by a bare name that
// maps to a deterministic address.
type Step struct {
	Op string `json:"op"`

	Name        string  `json:"name,omitempty"`
	Address     string  `json:"address,omitempty"`
	Decimals    *uint8  `json:"decimals,omitempty"`
	Asset       string  `json:"asset,omitempty"`
	InterestBps *uint32 `json:"interest_bps,omitempty"`

	Token  string `json:"token,omitempty"`
	TokenB string `json:"token_b,omitempty"`
	Vault  string `json:"vault,omitempty"`
	VaultB string `json:"vault_b,omitempty"`
	Stable bool   `json:"stable,omitempty"`
	Pair   string `json:"pair,omitempty"`

	Caller   string `json:"caller,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Spender  string `json:"spender,omitempty"`
	Receiver string `json:"receiver,omitempty"`

	// Amount is a decimal in token units; LP amounts use 18 decimals.
	Amount string `json:"amount,omitempty"`
	// Amounts maps token names to deposit amounts.
	Amounts map[string]string `json:"amounts,omitempty"`
	Bps     *uint32           `json:"bps,omitempty"`
	// Duration is a Go duration string such as "720h".
	Duration string `json:"duration,omitempty"`

	// Expect names the error kind the step must fail with.
	Expect string `json:"expect,omitempty"`

	line int
	raw  []byte
}

// Line is the 1-based line of the step in its script.
func (s Step) Line() int { return s.line }

var expectedErrors = map[string]error{
	"pair_exists":                    pool.ErrPairExists,
	"invalid_token":                  pool.ErrInvalidToken,
	"insufficient_initial_liquidity": pool.ErrInsufficientInitialLiquidity,
	"insufficient_lp_balance":        pool.ErrInsufficientLpBalance,
	"invariant_violation":            pool.ErrInvariantViolation,
	"unauthorized":                   pool.ErrUnauthorized,
	"fee_share_out_of_range":         pool.ErrFeeShareOutOfRange,
	"nothing_to_harvest":             pool.ErrNothingToHarvest,
	"external_call_failed":           pool.ErrExternalCallFailed,
	"invalid_amount":                 pool.ErrInvalidAmount,
	"insufficient_liquidity":         pool.ErrInsufficientLiquidity,
	"insufficient_output_amount":     pool.ErrInsufficientOutputAmount,
	"insufficient_allowance":         pool.ErrInsufficientAllowance,
	"reentrant":                      pool.ErrReentrant,
	"invalid_config":                 pool.ErrInvalidConfig,
}

// ExpectedErrorNames lists the values accepted by Step.Expect.
func ExpectedErrorNames() []string {
	names := make([]string, 0, len(expectedErrors))
	for name := range expectedErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadSteps parses a JSONL script. Blank lines and lines starting with
// '#' are skipped.
func ReadSteps(r io.Reader) ([]Step, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var steps []Step
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var step Step
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&step); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if step.Op == "" {
			return nil, fmt.Errorf("line %d: missing op", lineNo)
		}
		if step.Expect != "" {
			if _, ok := expectedErrors[step.Expect]; !ok {
				return nil, fmt.Errorf("line %d: unknown expect %q (want one of %s)", lineNo, step.Expect, strings.Join(ExpectedErrorNames(), ", "))
			}
		}
		step.line = lineNo
		step.raw = append([]byte(nil), line...)
		steps = append(steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan scenario: %w", err)
	}
	if len(steps) == 0 {
		return nil, errors.New("scenario has no steps")
	}
	return steps, nil
}
