// Package snapshot holds the last-fetched set of raw orders and the
// poller that refreshes it. Grouping and payment distribution are
// pure functions over the snapshot; the next poll cycle is the only
// mechanism that reconciles divergence after concurrent edits.
package snapshot

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/restxqr/kasa/internal/order"
)

// Fetcher lists the restaurant's current orders.
type Fetcher interface {
	ListOrders(ctx context.Context) ([]*order.Raw, error)
}

// Store is the mutex-guarded snapshot. Readers get copies; nothing
// outside the poller and Refresh mutates it.
type Store struct {
	mu        sync.RWMutex
	orders    []*order.Raw
	fetchedAt time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Orders returns a copy of the current snapshot.
func (s *Store) Orders() []*order.Raw {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*order.Raw, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

// FetchedAt returns when the snapshot was last refreshed.
func (s *Store) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Replace swaps in a freshly fetched snapshot and reports whether it
// differs from the previous one. The fetch timestamp advances either
// way.
func (s *Store) Replace(orders []*order.Raw, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := !reflect.DeepEqual(s.orders, orders)
	s.orders = orders
	s.fetchedAt = at
	return changed
}

// Poller refreshes the store on a fixed interval. Fetch failures are
// logged and recovered by the next cycle, never fatal.
type Poller struct {
	store    *Store
	fetcher  Fetcher
	interval time.Duration
	log      *slog.Logger
	onUpdate func()

	kick chan struct{}
}

// NewPoller creates a Poller. onUpdate (optional) runs after each
// successful refresh that changed the snapshot, outside the store
// lock.
func NewPoller(store *Store, fetcher Fetcher, interval time.Duration, log *slog.Logger, onUpdate func()) *Poller {
	return &Poller{
		store:    store,
		fetcher:  fetcher,
		interval: interval,
		log:      log,
		onUpdate: onUpdate,
		kick:     make(chan struct{}, 1),
	}
}

// Refresh requests an immediate out-of-cycle poll, used after a
// cashier action so the screen converges without waiting a full
// interval. Non-blocking; a pending request coalesces.
func (p *Poller) Refresh() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls until the context is cancelled. The first fetch happens
// immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		case <-p.kick:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	orders, err := p.fetcher.ListOrders(ctx)
	if err != nil {
		p.log.Error("order poll failed", "error", err)
		return
	}

	if p.store.Replace(orders, time.Now()) && p.onUpdate != nil {
		p.onUpdate()
	}
}
