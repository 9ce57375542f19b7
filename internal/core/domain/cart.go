package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OperationType string

const (
	OperationUpsert OperationType = "upsert"
	OperationRemove OperationType = "remove"
)

type SyncState string

const (
	SyncIdle     SyncState = "idle"
	SyncFlushing SyncState = "syncing"
)

// CartItem is a single line in the cart. UnitPrice is a snapshot of the
// catalog price at add time, in the base currency (EUR).
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PendingOperation is a queued remote write. Version is a monotonic
// counter used to discard stale completions: a newer mutation for the
// same product replaces the payload and bumps the version, so a flush
// that finishes with an older version must not dequeue the entry.
type PendingOperation struct {
	ID         string
	Type       OperationType
	ProductID  int64
	Quantity   int
	UnitPrice  decimal.Decimal
	Version    uint64
	EnqueuedAt time.Time
}

// CartSnapshot is an immutable copy of the cart handed to readers.
type CartSnapshot struct {
	Items     []CartItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
}

// SyncStatus describes where the store sits in its sync cycle.
type SyncStatus struct {
	State        SyncState  `json:"state"`
	Online       bool       `json:"online"`
	PendingCount int        `json:"pending_count"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}
