package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/craftly/cart-engine/internal/core/domain"
)

// DefaultShippingZones is the reference zone table, checked in priority
// order: the metropolitan zone first, then overseas territories, then
// the national fallback which matches any code.
func DefaultShippingZones() []domain.ShippingZone {
	metroThreshold := decimal.NewFromInt(50)
	nationalThreshold := decimal.NewFromInt(80)

	return []domain.ShippingZone{
		{
			Name:             "metropolitan",
			PostalPrefixes:   []string{"75", "77", "78", "91", "92", "93", "94", "95"},
			BaseCost:         decimal.RequireFromString("4.90"),
			FreeThreshold:    &metroThreshold,
			DeliveryEstimate: "1-2 business days",
		},
		{
			Name:             "overseas",
			PostalPrefixes:   []string{"97", "98"},
			BaseCost:         decimal.RequireFromString("12.90"),
			FreeThreshold:    nil,
			DeliveryEstimate: "5-10 business days",
		},
		{
			Name:             "national",
			PostalPrefixes:   nil,
			BaseCost:         decimal.RequireFromString("6.90"),
			FreeThreshold:    &nationalThreshold,
			DeliveryEstimate: "2-4 business days",
		},
	}
}

// ShippingCalculator maps (postal code, order amount) to a quote. It is
// pure: the zone table is fixed at construction and no call can fail.
type ShippingCalculator struct {
	zones []domain.ShippingZone
}

func NewShippingCalculator(zones []domain.ShippingZone) *ShippingCalculator {
	if len(zones) == 0 {
		zones = DefaultShippingZones()
	}
	return &ShippingCalculator{zones: zones}
}

// Calculate quotes shipping for an order. Unmatched or malformed postal
// codes fall through to the last zone; a negative amount is clamped to
// zero before the free-shipping comparison.
func (s *ShippingCalculator) Calculate(postalCode string, orderAmount decimal.Decimal) domain.ShippingQuote {
	if orderAmount.IsNegative() {
		orderAmount = decimal.Zero
	}
	zone := s.match(normalizePostalCode(postalCode))

	quote := domain.ShippingQuote{
		Zone:             zone.Name,
		Cost:             zone.BaseCost,
		DeliveryEstimate: zone.DeliveryEstimate,
	}

	if zone.FreeThreshold != nil {
		if orderAmount.GreaterThanOrEqual(*zone.FreeThreshold) {
			quote.IsFree = true
			quote.Cost = decimal.Zero
		} else {
			missing := zone.FreeThreshold.Sub(orderAmount)
			quote.Savings = &missing
		}
	}
	return quote
}

func (s *ShippingCalculator) match(code string) domain.ShippingZone {
	for _, z := range s.zones {
		if z.Matches(code) {
			return z
		}
	}
	// Zone tables end with a catch-all; a table without one still
	// falls back to its last entry rather than failing the checkout.
	return s.zones[len(s.zones)-1]
}

func normalizePostalCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}
