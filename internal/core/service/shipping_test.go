package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_MetropolitanAboveThresholdIsFree(t *testing.T) {
	s := NewShippingCalculator(nil)

	quote := s.Calculate("75011", decimal.NewFromInt(60))

	assert.Equal(t, "metropolitan", quote.Zone)
	assert.True(t, quote.IsFree)
	assert.True(t, quote.Cost.IsZero())
	assert.Nil(t, quote.Savings)
}

func TestCalculate_MetropolitanBelowThreshold(t *testing.T) {
	s := NewShippingCalculator(nil)

	quote := s.Calculate("92100", decimal.NewFromInt(30))

	assert.Equal(t, "metropolitan", quote.Zone)
	assert.False(t, quote.IsFree)
	assert.True(t, quote.Cost.Equal(decimal.RequireFromString("4.90")))
	require.NotNil(t, quote.Savings)
	assert.True(t, quote.Savings.Equal(decimal.NewFromInt(20)), "20 more to reach free shipping")
	assert.Equal(t, "1-2 business days", quote.DeliveryEstimate)
}

func TestCalculate_UnmatchedCodeFallsBackToNational(t *testing.T) {
	s := NewShippingCalculator(nil)

	quote := s.Calculate("99999", decimal.Zero)

	assert.Equal(t, "national", quote.Zone)
	assert.False(t, quote.IsFree)
	assert.True(t, quote.Cost.Equal(decimal.RequireFromString("6.90")))
}

func TestCalculate_EmptyAndMalformedCodes(t *testing.T) {
	s := NewShippingCalculator(nil)

	for _, code := range []string{"", "   ", "abc", "7"} {
		quote := s.Calculate(code, decimal.NewFromInt(10))
		assert.Equal(t, "national", quote.Zone, "code %q", code)
	}
}

func TestCalculate_NormalizesWhitespace(t *testing.T) {
	s := NewShippingCalculator(nil)

	quote := s.Calculate("  75 011 ", decimal.NewFromInt(10))
	assert.Equal(t, "metropolitan", quote.Zone)
}

func TestCalculate_OverseasNeverFree(t *testing.T) {
	s := NewShippingCalculator(nil)

	quote := s.Calculate("97400", decimal.NewFromInt(1000))

	assert.Equal(t, "overseas", quote.Zone)
	assert.False(t, quote.IsFree, "no free-shipping threshold overseas")
	assert.True(t, quote.Cost.Equal(decimal.RequireFromString("12.90")))
	assert.Nil(t, quote.Savings)
}

func TestCalculate_NegativeAmountClampedToZero(t *testing.T) {
	s := NewShippingCalculator(nil)

	quote := s.Calculate("75001", decimal.NewFromInt(-10))

	assert.False(t, quote.IsFree)
	require.NotNil(t, quote.Savings)
	assert.True(t, quote.Savings.Equal(decimal.NewFromInt(50)), "savings computed from a zero amount")
}

func TestCalculate_NationalAboveThresholdIsFree(t *testing.T) {
	s := NewShippingCalculator(nil)

	quote := s.Calculate("33000", decimal.NewFromInt(80))

	assert.Equal(t, "national", quote.Zone)
	assert.True(t, quote.IsFree)
	assert.True(t, quote.Cost.IsZero())
}
