package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/craftly/cart-engine/internal/port"
	"github.com/craftly/cart-engine/pkg/retry"
)

// CartManager hands out one CartService per cart session and fans the
// connectivity signal out to all of them. Each cart also gets a change
// watcher, so a snapshot persisted by another server instance folds
// into the local session.
type CartManager struct {
	remote  port.RemoteCartRepository
	catalog port.CatalogReader
	cache   port.SnapshotCache
	notices port.NoticeDeduper
	logger  *zap.Logger
	opts    retry.Options

	watchCtx  context.Context
	watchStop context.CancelFunc

	mu    sync.Mutex
	carts map[string]*CartService
}

func NewCartManager(
	remote port.RemoteCartRepository,
	catalog port.CatalogReader,
	cache port.SnapshotCache,
	notices port.NoticeDeduper,
	logger *zap.Logger,
	opts retry.Options,
) *CartManager {
	watchCtx, watchStop := context.WithCancel(context.Background())
	return &CartManager{
		remote:    remote,
		catalog:   catalog,
		cache:     cache,
		notices:   notices,
		logger:    logger,
		opts:      opts,
		watchCtx:  watchCtx,
		watchStop: watchStop,
		carts:     make(map[string]*CartService),
	}
}

// Get returns the store for cartID, hydrating a new one on first use.
func (m *CartManager) Get(ctx context.Context, cartID string) *CartService {
	m.mu.Lock()
	svc, ok := m.carts[cartID]
	if !ok {
		svc = NewCartService(cartID, m.remote, m.catalog, m.cache, m.notices, m.logger, m.opts)
		m.carts[cartID] = svc
	}
	m.mu.Unlock()

	if !ok {
		svc.Hydrate(ctx)
		go m.watch(svc)
	}
	return svc
}

// watch subscribes to the cart's change signal and re-reads the
// persisted snapshot on every publish. Runs until Close.
func (m *CartManager) watch(svc *CartService) {
	err := m.cache.WatchChanges(m.watchCtx, svc.cartID, func() {
		ctx, cancel := context.WithTimeout(m.watchCtx, 5*time.Second)
		defer cancel()
		svc.Refresh(ctx)
	})
	if err != nil && m.watchCtx.Err() == nil {
		m.logger.Warn("change watch ended", zap.String("cart_id", svc.cartID), zap.Error(err))
	}
}

// Close stops every change watcher.
func (m *CartManager) Close() {
	m.watchStop()
}

// SetOnline broadcasts the connectivity signal. Carts that came online
// with queued operations get an asynchronous flush.
func (m *CartManager) SetOnline(online bool) {
	m.mu.Lock()
	carts := make([]*CartService, 0, len(m.carts))
	for _, svc := range m.carts {
		carts = append(carts, svc)
	}
	m.mu.Unlock()

	for _, svc := range carts {
		if svc.SetOnline(online) {
			go func(svc *CartService) {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := svc.Flush(ctx); err != nil {
					m.logger.Warn("reconnect flush failed", zap.Error(err))
				}
			}(svc)
		}
	}
}
