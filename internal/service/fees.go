package service

import (
	"github.com/shopspring/decimal"
)

// Fee tier boundaries in kobo (₦5,000 and ₦10,000).
const (
	feeTierMid  int64 = 500000
	feeTierHigh int64 = 1000000
)

var (
	feeRateLow  = decimal.RequireFromString("0.05")
	feeRateMid  = decimal.RequireFromString("0.10")
	feeRateHigh = decimal.RequireFromString("0.20")
)

// CalculateFee returns the platform fee on a contribution amount, both in kobo.
// The tier is chosen by the contribution amount, not the total charged.
func CalculateFee(amount int64) int64 {
	rate := feeRateLow
	switch {
	case amount >= feeTierHigh:
		rate = feeRateHigh
	case amount >= feeTierMid:
		rate = feeRateMid
	}
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// PercentOf returns pct percent of amount rounded to the nearest kobo.
func PercentOf(amount int64, pct int) int64 {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FormatNaira renders kobo as a naira string, e.g. 150050 -> "₦1500.50".
func FormatNaira(kobo int64) string {
	return "₦" + decimal.New(kobo, -2).StringFixed(2)
}
