package units

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"
)

func TestToBaseUnits(t *testing.T) {
	t.Parallel()

	ether := big.NewInt(params.Ether)

	tests := []struct {
		name     string
		amount   string
		decimals int32
		want     *big.Int
		wantErr  error
	}{
		{name: "whole ether", amount: "14000", decimals: EtherDecimals, want: new(big.Int).Mul(big.NewInt(14000), ether)},
		{name: "zero", amount: "0", decimals: EtherDecimals, want: big.NewInt(0)},
		{name: "fraction", amount: "0.05", decimals: EtherDecimals, want: big.NewInt(50_000_000_000_000_000)},
		{name: "smallest unit", amount: "0.000000000000000001", decimals: EtherDecimals, want: big.NewInt(1)},
		{name: "six decimals", amount: "1.5", decimals: 6, want: big.NewInt(1_500_000)},
		{name: "too precise", amount: "0.0000000000000000001", decimals: EtherDecimals, wantErr: ErrPrecisionLoss},
		{name: "negative", amount: "-1", decimals: EtherDecimals, wantErr: ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.Cmp(tt.want) != 0 {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestToBaseUnitsExactForLargeAmounts(t *testing.T) {
	t.Parallel()

	got, err := ToBaseUnits(decimal.NewFromInt(14000), EtherDecimals)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.String() != "14000000000000000000000" {
		t.Fatalf("unexpected wei value %s", got)
	}
}

func TestFromBaseUnits(t *testing.T) {
	t.Parallel()

	wei, _ := new(big.Int).SetString("14000000000000000000000", 10)
	if got := FromBaseUnits(wei, EtherDecimals); !got.Equal(decimal.NewFromInt(14000)) {
		t.Fatalf("expected 14000, got %s", got)
	}
	if got := FromBaseUnits(nil, EtherDecimals); !got.IsZero() {
		t.Fatalf("expected zero for nil, got %s", got)
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	if _, err := ParseAmount("not-a-number"); err == nil {
		t.Fatalf("expected error for malformed amount")
	}
	d, err := ParseAmount("14000")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !d.Equal(decimal.NewFromInt(14000)) {
		t.Fatalf("expected 14000, got %s", d)
	}
}
