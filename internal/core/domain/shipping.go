package domain

import "github.com/shopspring/decimal"

// ShippingZone maps a set of postal-code prefixes to a cost tier. Zones
// are evaluated in priority order; a zone with no prefixes matches any
// code and serves as the fallback.
type ShippingZone struct {
	Name             string
	PostalPrefixes   []string
	BaseCost         decimal.Decimal
	FreeThreshold    *decimal.Decimal
	DeliveryEstimate string
}

func (z ShippingZone) Matches(code string) bool {
	if len(z.PostalPrefixes) == 0 {
		return true
	}
	for _, p := range z.PostalPrefixes {
		if len(code) >= len(p) && code[:len(p)] == p {
			return true
		}
	}
	return false
}

// ShippingQuote is the derived result of a shipping calculation.
// Savings is the amount still missing to reach free shipping, set only
// when the zone has a threshold and the order falls short of it.
type ShippingQuote struct {
	Zone             string           `json:"zone"`
	IsFree           bool             `json:"is_free"`
	Cost             decimal.Decimal  `json:"cost"`
	DeliveryEstimate string           `json:"delivery_estimate"`
	Savings          *decimal.Decimal `json:"savings,omitempty"`
}
