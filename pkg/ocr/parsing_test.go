package ocr

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"10.000,00":          "10000",
		"7,500.00":           "7500",
		"Rp50.000":           "50000",
		"Rp 1.250.000,50":    "1250000.50",
		"jumlah: 2.500.000,": "2500000",
		"TOTAL Rp40.000":     "40000",
		"IDR 600000":         "600000",
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		require.Truef(t, decimal.RequireFromString(want).Equal(got), "%s: want %s got %s", in, want, got)
	}

	_, err := ParseAmount("Rp")
	require.Error(t, err)
}

func TestExtractRibu(t *testing.T) {
	amt, raw := extractRibu("transfer 400 ribu ok")
	require.True(t, decimal.NewFromInt(400000).Equal(amt))
	require.Equal(t, "400 ribu", raw)

	amt, _ = extractRibu("tidak ada")
	require.True(t, amt.IsZero())
}
