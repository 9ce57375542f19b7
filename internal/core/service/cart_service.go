package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craftly/cart-engine/internal/core/domain"
	"github.com/craftly/cart-engine/internal/port"
	"github.com/craftly/cart-engine/pkg/retry"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// permanentStreakCeiling bounds the backoff escalation applied after
// consecutive permanent remote failures.
const permanentStreakCeiling = 3

// CartService is the single writer of cart state. Mutations apply to
// local state immediately and enqueue a remote write; the queue keeps
// FIFO order across products and collapses to the latest intent per
// product. Remote failures never roll local state back.
type CartService struct {
	cartID  string
	remote  port.RemoteCartRepository
	catalog port.CatalogReader
	cache   port.SnapshotCache
	notices port.NoticeDeduper
	logger  *zap.Logger
	opts    retry.Options

	mu              sync.Mutex
	items           []domain.CartItem
	pending         map[int64]*domain.PendingOperation
	queueOrder      []int64
	version         uint64
	state           domain.SyncState
	online          bool
	lastSyncedAt    *time.Time
	permanentStreak int
	lastNotice      string
}

func NewCartService(
	cartID string,
	remote port.RemoteCartRepository,
	catalog port.CatalogReader,
	cache port.SnapshotCache,
	notices port.NoticeDeduper,
	logger *zap.Logger,
	opts retry.Options,
) *CartService {
	return &CartService{
		cartID:  cartID,
		remote:  remote,
		catalog: catalog,
		cache:   cache,
		notices: notices,
		logger:  logger.With(zap.String("cart_id", cartID)),
		opts:    opts,
		pending: make(map[int64]*domain.PendingOperation),
		state:   domain.SyncIdle,
	}
}

// Hydrate loads the initial cart state. A cached local snapshot wins
// over the remote cart; the remote is authoritative only on a fresh
// load with nothing cached. Both sources failing leaves an empty cart
// rather than blocking the session.
func (s *CartService) Hydrate(ctx context.Context) {
	snap, err := s.cache.Load(ctx, s.cartID)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", zap.Error(err))
	}
	if snap != nil {
		s.mu.Lock()
		s.items = cloneItems(snap.Items)
		s.mu.Unlock()
		return
	}

	items := retry.DoSilent(ctx, func(ctx context.Context) ([]domain.CartItem, error) {
		return s.remote.FetchCart(ctx, s.cartID)
	}, nil, s.opts)

	s.mu.Lock()
	s.items = items
	if items != nil {
		s.online = true
	}
	s.mu.Unlock()
	s.persist(ctx)
}

// AddItem appends a line or increments an existing one. The unit price
// is snapshotted from the catalog at add time for new lines.
func (s *CartService) AddItem(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	// Catalog read happens outside the lock; only new lines need it,
	// but resolving it up front keeps the critical section short.
	price, priceErr := s.catalog.UnitPrice(ctx, productID)

	s.mu.Lock()
	var updated *domain.CartItem
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items[i].Quantity += quantity
			updated = &s.items[i]
			break
		}
	}
	if updated == nil {
		if priceErr != nil {
			s.mu.Unlock()
			return fmt.Errorf("price lookup for product %d: %w", productID, priceErr)
		}
		s.items = append(s.items, domain.CartItem{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: price,
			AddedAt:   time.Now(),
		})
		updated = &s.items[len(s.items)-1]
	}
	s.enqueueLocked(domain.OperationUpsert, *updated)
	s.mu.Unlock()

	s.settle(ctx)
	return nil
}

// UpdateQuantity sets a line's quantity. Anything below one removes the
// line entirely.
func (s *CartService) UpdateQuantity(ctx context.Context, productID int64, newQuantity int) error {
	if newQuantity < 1 {
		return s.RemoveItem(ctx, productID)
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items[i].Quantity = newQuantity
			s.enqueueLocked(domain.OperationUpsert, s.items[i])
			s.mu.Unlock()
			s.settle(ctx)
			return nil
		}
	}
	s.mu.Unlock()
	return fmt.Errorf("update quantity: %w", port.ErrProductNotFound)
}

// RemoveItem drops a line locally and queues the remote delete.
// Removing an absent line is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, productID int64) error {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			found = true
			break
		}
	}
	if found {
		s.enqueueLocked(domain.OperationRemove, domain.CartItem{ProductID: productID})
	}
	s.mu.Unlock()

	if found {
		s.settle(ctx)
	}
	return nil
}

// Clear empties the cart, queueing a remove per line.
func (s *CartService) Clear(ctx context.Context) {
	s.mu.Lock()
	for _, item := range s.items {
		s.enqueueLocked(domain.OperationRemove, domain.CartItem{ProductID: item.ProductID})
	}
	s.items = nil
	s.mu.Unlock()

	s.settle(ctx)
}

// Snapshot returns an immutable copy of the cart. Repeated calls
// without an intervening mutation return equal values.
func (s *CartService) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *CartService) snapshotLocked() domain.CartSnapshot {
	subtotal := decimal.Zero
	count := 0
	for _, item := range s.items {
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
	}
	return domain.CartSnapshot{
		Items:     cloneItems(s.items),
		Subtotal:  subtotal,
		ItemCount: count,
	}
}

// Status reports the sync machine's externally visible state.
func (s *CartService) Status() domain.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SyncStatus{
		State:        s.state,
		Online:       s.online,
		PendingCount: len(s.queueOrder),
		LastSyncedAt: s.lastSyncedAt,
	}
}

// Notice returns the most recent deduplicated user-facing sync notice,
// empty when there is none.
func (s *CartService) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastNotice
}

// SetOnline flips the connectivity flag and reports whether a flush is
// now due (came online with queued operations). The caller decides
// when to run it.
func (s *CartService) SetOnline(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasOnline := s.online
	s.online = online
	return online && !wasOnline && len(s.queueOrder) > 0
}

// PendingCount is the number of distinct products with queued writes.
func (s *CartService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queueOrder)
}

// Refresh re-reads the freshest persisted snapshot, the storage-change
// path for concurrent sessions. The local session wins while it has
// queued edits of its own.
func (s *CartService) Refresh(ctx context.Context) {
	s.mu.Lock()
	hasPending := len(s.queueOrder) > 0
	s.mu.Unlock()
	if hasPending {
		return
	}

	snap, err := s.cache.Load(ctx, s.cartID)
	if err != nil || snap == nil {
		return
	}
	s.mu.Lock()
	if len(s.queueOrder) == 0 {
		s.items = cloneItems(snap.Items)
	}
	s.mu.Unlock()
}

// Flush replays the pending queue in FIFO order, one retry-wrapped
// dispatch per operation. A transient failure stops the flush, keeps
// the remainder queued and marks the store offline. A permanent
// failure additionally surfaces a deduplicated notice and escalates
// the backoff ceiling for subsequent flushes.
func (s *CartService) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.state == domain.SyncFlushing {
		s.mu.Unlock()
		return nil
	}
	if !s.online || len(s.queueOrder) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.SyncFlushing
	s.mu.Unlock()

	err := s.drain(ctx)

	s.mu.Lock()
	s.state = domain.SyncIdle
	if err != nil {
		s.online = false
	} else {
		now := time.Now()
		s.lastSyncedAt = &now
		s.permanentStreak = 0
		s.lastNotice = ""
	}
	s.mu.Unlock()

	s.persist(ctx)
	return err
}

func (s *CartService) drain(ctx context.Context) error {
	for {
		op, ok := s.nextOp()
		if !ok {
			return nil
		}

		_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.dispatch(ctx, op)
		}, s.flushOpts())
		if err != nil {
			s.recordFailure(ctx, err)
			return fmt.Errorf("flush %s product %d: %w", op.Type, op.ProductID, err)
		}

		s.complete(op)
	}
}

func (s *CartService) dispatch(ctx context.Context, op domain.PendingOperation) error {
	switch op.Type {
	case domain.OperationRemove:
		return s.remote.RemoveItem(ctx, s.cartID, op.ProductID)
	default:
		return s.remote.UpsertItem(ctx, s.cartID, domain.CartItem{
			ProductID: op.ProductID,
			Quantity:  op.Quantity,
			UnitPrice: op.UnitPrice,
			AddedAt:   op.EnqueuedAt,
		})
	}
}

// nextOp returns a copy of the oldest queued operation.
func (s *CartService) nextOp() (domain.PendingOperation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queueOrder) == 0 {
		return domain.PendingOperation{}, false
	}
	return *s.pending[s.queueOrder[0]], true
}

// complete dequeues op unless a newer mutation replaced it while the
// dispatch was in flight; a version mismatch means the completion is
// stale and the fresher intent must be dispatched again.
func (s *CartService) complete(op domain.PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.pending[op.ProductID]
	if !ok || current.Version != op.Version {
		return
	}
	delete(s.pending, op.ProductID)
	for i, id := range s.queueOrder {
		if id == op.ProductID {
			s.queueOrder = append(s.queueOrder[:i], s.queueOrder[i+1:]...)
			break
		}
	}
}

func (s *CartService) recordFailure(ctx context.Context, err error) {
	if !errors.Is(err, port.ErrUnauthorized) {
		s.logger.Warn("cart flush failed, staying offline", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.permanentStreak < permanentStreakCeiling {
		s.permanentStreak++
	}
	s.mu.Unlock()

	first, dedupErr := s.notices.FirstNotice(ctx, "cart-sync-unauthorized:"+s.cartID)
	if dedupErr != nil {
		s.logger.Warn("notice dedup failed", zap.Error(dedupErr))
		return
	}
	if first {
		s.mu.Lock()
		s.lastNotice = "cart could not be saved: please sign in again"
		s.mu.Unlock()
		s.logger.Error("permanent cart sync failure", zap.Error(err))
	}
}

// flushOpts escalates the backoff ceiling after consecutive permanent
// failures so a misconfigured session does not hammer the remote.
func (s *CartService) flushOpts() retry.Options {
	s.mu.Lock()
	streak := s.permanentStreak
	s.mu.Unlock()

	opts := s.opts
	if streak > 0 {
		if opts.MaxDelay <= 0 {
			opts.MaxDelay = 5 * time.Second
		}
		opts.MaxDelay <<= streak
	}
	return opts
}

// enqueueLocked records the latest intent for a product. A product
// already queued keeps its FIFO position and only its payload and
// version change.
func (s *CartService) enqueueLocked(opType domain.OperationType, item domain.CartItem) {
	s.version++
	if existing, ok := s.pending[item.ProductID]; ok {
		existing.Type = opType
		existing.Quantity = item.Quantity
		existing.UnitPrice = item.UnitPrice
		existing.Version = s.version
		return
	}
	s.pending[item.ProductID] = &domain.PendingOperation{
		ID:         uuid.NewString(),
		Type:       opType,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
		UnitPrice:  item.UnitPrice,
		Version:    s.version,
		EnqueuedAt: time.Now(),
	}
	s.queueOrder = append(s.queueOrder, item.ProductID)
}

// settle persists the snapshot, signals other sessions and, when the
// store is online and idle, starts an asynchronous flush.
func (s *CartService) settle(ctx context.Context) {
	s.persist(ctx)

	s.mu.Lock()
	shouldFlush := s.online && s.state == domain.SyncIdle && len(s.queueOrder) > 0
	s.mu.Unlock()

	if shouldFlush {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("background flush failed", zap.Error(err))
			}
		}()
	}
}

// persist writes the current snapshot to the local cache, best effort.
func (s *CartService) persist(ctx context.Context) {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.cache.Store(ctx, s.cartID, snap); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.Error(err))
		return
	}
	if err := s.cache.PublishChange(ctx, s.cartID); err != nil {
		s.logger.Debug("change signal failed", zap.Error(err))
	}
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	if items == nil {
		return nil
	}
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
