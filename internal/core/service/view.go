package service

import "github.com/craftly/cart-engine/internal/core/domain"

const (
	badgeColorEmpty  = "gray"
	badgeColorFilled = "green"
)

// CartView carries the presentation-only values the storefront derives
// from cart state: badge, sync spinner, offline indicator.
type CartView struct {
	BadgeCount   int    `json:"badge_count"`
	BadgeColor   string `json:"badge_color"`
	Syncing      bool   `json:"syncing"`
	Offline      bool   `json:"offline"`
	PendingCount int    `json:"pending_count"`
	Notice       string `json:"notice,omitempty"`
}

// BuildCartView derives a view from a snapshot and sync status. Pure,
// no side effects.
func BuildCartView(snap domain.CartSnapshot, status domain.SyncStatus, notice string) CartView {
	color := badgeColorEmpty
	if snap.ItemCount > 0 {
		color = badgeColorFilled
	}
	return CartView{
		BadgeCount:   snap.ItemCount,
		BadgeColor:   color,
		Syncing:      status.State == domain.SyncFlushing,
		Offline:      !status.Online,
		PendingCount: status.PendingCount,
		Notice:       notice,
	}
}
