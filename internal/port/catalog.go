package port

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// CatalogReader exposes the product service as read-only reference
// data. The cart snapshots the returned price at add time.
type CatalogReader interface {
	UnitPrice(ctx context.Context, productID int64) (decimal.Decimal, error)
}
