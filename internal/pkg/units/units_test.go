package units

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals int
		want     string
		wantErr  error
	}{
		{name: "whole USDC", raw: "100", decimals: 6, want: "100000000"},
		{name: "fractional USDC", raw: "1.5", decimals: 6, want: "1500000"},
		{name: "max precision", raw: "0.000001", decimals: 6, want: "1"},
		{name: "18 decimals", raw: "1.234567890123456789", decimals: 18, want: "1234567890123456789"},
		{name: "zero decimals", raw: "42", decimals: 0, want: "42"},
		{name: "whitespace", raw: "  2.5 ", decimals: 2, want: "250"},
		{name: "too precise", raw: "0.0000001", decimals: 6, wantErr: ErrTooPrecise},
		{name: "negative", raw: "-1", decimals: 6, wantErr: ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.raw, tt.decimals)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseAmount() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseAmount_Garbage(t *testing.T) {
	if _, err := ParseAmount("ten", 18); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestToBaseUnits_InvalidDecimals(t *testing.T) {
	if _, err := ToBaseUnits(decimal.NewFromInt(1), -1); !errors.Is(err, ErrInvalidDecimals) {
		t.Errorf("expected ErrInvalidDecimals, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	amounts := []string{"0", "1", "0.1", "123.456", "999999999.999999", "0.000000000000000001", "7.25"}
	for _, d := range []int{6, 8, 18} {
		for _, raw := range amounts {
			amount := decimal.RequireFromString(raw)
			if -amount.Exponent() > int32(d) {
				continue
			}
			base, err := ToBaseUnits(amount, d)
			if err != nil {
				t.Fatalf("ToBaseUnits(%s, %d): %v", raw, d, err)
			}
			back := FromBaseUnits(base, d)
			if !back.Equal(amount) {
				t.Errorf("round trip %s with %d decimals = %s", raw, d, back)
			}
		}
	}
}

func TestFromBaseUnits(t *testing.T) {
	raw, _ := new(big.Int).SetString("2500000000000000000", 10)
	if got := FromBaseUnits(raw, 18); !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("FromBaseUnits() = %s, want 2.5", got)
	}
	if got := FromBaseUnits(nil, 6); !got.IsZero() {
		t.Errorf("FromBaseUnits(nil) = %s, want 0", got)
	}
	if got := Format(big.NewInt(1500000), 6); got != "1.5" {
		t.Errorf("Format() = %s, want 1.5", got)
	}
}

func TestFromWad(t *testing.T) {
	lltv, _ := new(big.Int).SetString("915000000000000000", 10)
	if got := FromWad(lltv); !got.Equal(decimal.RequireFromString("0.915")) {
		t.Errorf("FromWad() = %s, want 0.915", got)
	}
}
