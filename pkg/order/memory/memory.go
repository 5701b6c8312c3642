// Package memory implements an in-memory order repository.
package memory

import (
	"context"
	"slices"
	"sync"

	"orderdesk/pkg/order"
)

// Repository provides an in-memory implementation of order.Repository.
// List returns orders in creation order.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]order.Order
	ids    []string
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{orders: make(map[string]order.Order)}
}

// Create stores the order.
func (r *Repository) Create(ctx context.Context, o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; !ok {
		r.ids = append(r.ids, o.ID)
	}
	o = o.Clone()
	o.Recalculate()
	r.orders[o.ID] = o
	return nil
}

// Get retrieves an order by ID.
func (r *Repository) Get(ctx context.Context, id string) (order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o.Clone(), nil
}

// List returns all orders.
func (r *Repository) List(ctx context.Context) ([]order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]order.Order, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.orders[id].Clone())
	}
	return out, nil
}

// Delete removes an order by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return order.ErrNotFound
	}
	delete(r.orders, id)
	r.ids = slices.DeleteFunc(r.ids, func(s string) bool { return s == id })
	return nil
}

// AddItem appends it to the order and returns the recomputed order.
func (r *Repository) AddItem(ctx context.Context, orderID string, it order.Item) (order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	o = o.Clone()
	o.Items = append(o.Items, it)
	o.Recalculate()
	r.orders[orderID] = o
	return o.Clone(), nil
}

// DeleteItem removes one item and returns the recomputed order.
func (r *Repository) DeleteItem(ctx context.Context, orderID, itemID string) (order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	if !o.HasItem(itemID) {
		return order.Order{}, order.ErrItemNotFound
	}
	o.Items = o.WithoutItem(itemID)
	o.Recalculate()
	r.orders[orderID] = o
	return o.Clone(), nil
}
