package port

import (
	"context"
	"errors"

	"github.com/craftly/cart-engine/internal/core/domain"
)

// ErrUnauthorized marks a permanent remote failure. Retrying does not
// help; the store surfaces it once and keeps the operation queued.
var ErrUnauthorized = errors.New("remote cart: unauthorized")

type RemoteCartRepository interface {
	// FetchCart returns the persisted cart lines in insertion order.
	FetchCart(ctx context.Context, cartID string) ([]domain.CartItem, error)

	// UpsertItem creates or overwrites a single cart line.
	UpsertItem(ctx context.Context, cartID string, item domain.CartItem) error

	// RemoveItem deletes a cart line. Removing an absent line is not an error.
	RemoveItem(ctx context.Context, cartID string, productID int64) error

	// ReplaceCart atomically swaps the whole persisted cart.
	ReplaceCart(ctx context.Context, cartID string, items []domain.CartItem) error

	// Ping is the connectivity probe used to flip the store back online.
	Ping(ctx context.Context) error
}
