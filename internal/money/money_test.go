package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinor(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		precision int32
		want      int64
		wantErr   bool
	}{
		{name: "two places", input: "1500.00", precision: 2, want: 150000},
		{name: "one place", input: "0.5", precision: 2, want: 50},
		{name: "no fraction", input: "42", precision: 2, want: 4200},
		{name: "zero precision", input: "250", precision: 0, want: 250},
		{name: "negative", input: "-99.95", precision: 2, want: -9995},
		{name: "too many places", input: "1.234", precision: 2, wantErr: true},
		{name: "fraction at zero precision", input: "1.5", precision: 0, wantErr: true},
		{name: "not a number", input: "abc", precision: 2, wantErr: true},
		{name: "empty", input: "", precision: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMinor(tt.input, tt.precision)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "1500.00", FormatMinor(150000, 2))
	assert.Equal(t, "-99.95", FormatMinor(-9995, 2))
	assert.Equal(t, "250", FormatMinor(250, 0))
	assert.Equal(t, "0.00", FormatMinor(0, 2))
}

func TestPercentTruncatesTowardZero(t *testing.T) {
	assert.Equal(t, int64(60000), Percent(100000, decimal.NewFromInt(60)))
	// 33.33% of 10.01 is 333.6333 minor units, truncated to 333.
	assert.Equal(t, int64(333), Percent(1001, decimal.RequireFromString("33.33")))
	assert.Equal(t, int64(0), Percent(1, decimal.RequireFromString("0.5")))
}

func TestPercentAllocationsNeverExceedWhole(t *testing.T) {
	// Three thirds of an amount not divisible by three leave a remainder
	// instead of overshooting.
	third := decimal.RequireFromString("33.333333")
	total := Percent(100, third) + Percent(100, third) + Percent(100, third)
	assert.LessOrEqual(t, total, int64(100))
}
