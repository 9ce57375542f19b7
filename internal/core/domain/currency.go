package domain

// Currency is an ISO 4217 display currency supported by the storefront.
type Currency string

const (
	EUR Currency = "EUR" // base currency, prices are stored in EUR
	USD Currency = "USD"
	GBP Currency = "GBP"
)

func (c Currency) Valid() bool {
	switch c {
	case EUR, USD, GBP:
		return true
	}
	return false
}
