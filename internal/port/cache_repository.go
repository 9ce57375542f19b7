package port

import (
	"context"

	"github.com/craftly/cart-engine/internal/core/domain"
)

// SnapshotCache is the session-local persisted copy of the cart. It is
// read once at store construction and written on every settle, so a
// fresh load can resume an offline session.
type SnapshotCache interface {
	// Load returns nil with no error when no snapshot is cached.
	Load(ctx context.Context, cartID string) (*domain.CartSnapshot, error)
	Store(ctx context.Context, cartID string, snap domain.CartSnapshot) error

	// PublishChange notifies other sessions of the same cart that a
	// fresher snapshot was persisted.
	PublishChange(ctx context.Context, cartID string) error

	// WatchChanges invokes onChange for every published change until
	// ctx is cancelled.
	WatchChanges(ctx context.Context, cartID string, onChange func()) error
}

// NoticeDeduper collapses repeated user-facing error notices so a
// permanent sync failure surfaces exactly once per window.
type NoticeDeduper interface {
	// FirstNotice reports whether key was seen for the first time.
	FirstNotice(ctx context.Context, key string) (bool, error)
}
