package amount

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{in: "1000", decimals: 18, want: "1000000000000000000000"},
		{in: "1.5", decimals: 6, want: "1500000"},
		{in: "0.000001", decimals: 6, want: "1"},
		{in: "42", decimals: 0, want: "42"},
	}
	for _, tt := range tests {
		got, err := ParseUnits(tt.in, tt.decimals)
		if err != nil {
			t.Fatalf("ParseUnits(%q, %d): %v", tt.in, tt.decimals, err)
		}
		if got.String() != tt.want {
			t.Fatalf("ParseUnits(%q, %d): got %s want %s", tt.in, tt.decimals, got, tt.want)
		}
	}
}

func TestParseUnitsRejects(t *testing.T) {
	for _, in := range []string{"-1", "abc", "0.0000001"} {
		if _, err := ParseUnits(in, 6); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseUnits(%q): expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(1_500_000), 6); got != "1.5" {
		t.Fatalf("got %q want 1.5", got)
	}
	if got := FormatUnits(nil, 18); got != "0" {
		t.Fatalf("nil: got %q", got)
	}
	raw, _ := new(big.Int).SetString("88422971741112123974", 10)
	if got := FormatUnits(raw, 18); got != "88.422971741112123974" {
		t.Fatalf("got %q", got)
	}
}

func TestAPR(t *testing.T) {
	// 5 on 100 over half a year is 10% a year.
	got := APR(big.NewInt(5), big.NewInt(100), 365*24*time.Hour/2)
	if got != "0.100000000000000000" {
		t.Fatalf("APR: got %q", got)
	}
	if got := APR(big.NewInt(5), big.NewInt(0), time.Hour); got != "" {
		t.Fatalf("zero principal: got %q", got)
	}
	if got := Ratio(big.NewInt(1), big.NewInt(4)); got != "0.250000000000000000" {
		t.Fatalf("Ratio: got %q", got)
	}
}
