package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		amount int64
		want   int64
	}{
		{100000, 5000},    // ₦1,000 at 5%
		{499900, 24995},   // ₦4,999 at 5%
		{500000, 50000},   // ₦5,000 at 10%
		{999900, 99990},   // ₦9,999 at 10%
		{1000000, 200000}, // ₦10,000 at 20%
		{2500050, 500010},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CalculateFee(tt.amount), "fee on %d", tt.amount)
	}
}

func TestPercentOf(t *testing.T) {
	require.Equal(t, int64(10000), PercentOf(100000, 10))
	require.Equal(t, int64(50000), PercentOf(100000, 50))
	require.Equal(t, int64(1), PercentOf(5, 10)) // 0.5 rounds half away from zero
	require.Zero(t, PercentOf(100000, 0))
}

func TestFormatNaira(t *testing.T) {
	require.Equal(t, "₦1500.50", FormatNaira(150050))
	require.Equal(t, "₦0.00", FormatNaira(0))
	require.Equal(t, "₦10000.00", FormatNaira(1000000))
}
