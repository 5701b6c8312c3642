package cache

import (
	"context"
	"errors"
	"slices"

	"orderdesk/pkg/fetch"
	"orderdesk/pkg/order"
)

const (
	DeleteItemPrompt  = "Are you sure you want to delete this item?"
	DeleteOrderPrompt = "Are you sure you want to delete this order?"
)

var (
	// ErrNotConfirmed is returned when the user declines a destructive action.
	// No request is sent.
	ErrNotConfirmed = errors.New("action not confirmed")
	// ErrEmptyMutation is returned when an item add or delete succeeds but
	// the server sent neither the order nor its items. The cached order is
	// left as it was; refetch the orders to see the change.
	ErrEmptyMutation = errors.New("server returned no order data")
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm approves everything. Use it for non-interactive callers.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

func ask(ctx context.Context, c Confirmer, prompt string) error {
	if c == nil {
		return ErrNotConfirmed
	}
	ok, err := c.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// Lookup is the outcome of FindOrder.
type Lookup int

const (
	// Pending means the orders are still loading, or were never loaded.
	Pending Lookup = iota
	Found
	NotFound
)

func (l Lookup) String() string {
	switch l {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	}
	return "pending"
}

// FindOrder scans the cached orders for id. NotFound is only reported once
// the orders collection has settled; until then the answer is Pending.
func (s *Store) FindOrder(id string) (order.Order, Lookup) {
	st := s.orders.State()

	s.mu.RLock()
	i := slices.IndexFunc(s.orderList, func(o order.Order) bool { return o.ID == id })
	var o order.Order
	if i >= 0 {
		o = s.orderList[i].Clone()
	}
	s.mu.RUnlock()

	switch {
	case i >= 0:
		return o, Found
	case st.Loading || (st.Status != fetch.Succeeded && st.Status != fetch.Failed):
		return order.Order{}, Pending
	}
	return order.Order{}, NotFound
}

// AddOrderItem validates in, adds the item on the server and replaces the
// cached order with the server's answer. orderID must not be empty.
func (s *Store) AddOrderItem(ctx context.Context, orderID string, in order.ItemInput) (order.Order, error) {
	mustOrderID(orderID)
	if err := in.Validate(); err != nil {
		return order.Order{}, err
	}
	m, err := s.backend.AddOrderItem(ctx, orderID, in)
	if err != nil {
		return order.Order{}, err
	}
	if m.Order == nil && m.Items == nil {
		return order.Order{}, ErrEmptyMutation
	}
	o := s.reconcile(orderID, m, "")
	s.log.Info(ctx, "order item added", "order_id", orderID, "items", len(o.Items))
	return o, nil
}

// DeleteOrderItem asks confirm, removes the item on the server and replaces
// the cached order with the server's answer. orderID must not be empty.
func (s *Store) DeleteOrderItem(ctx context.Context, orderID, itemID string, confirm Confirmer) (order.Order, error) {
	mustOrderID(orderID)
	if err := ask(ctx, confirm, DeleteItemPrompt); err != nil {
		return order.Order{}, err
	}
	m, err := s.backend.DeleteOrderItem(ctx, orderID, itemID)
	if err != nil {
		return order.Order{}, err
	}
	if m.Order == nil && m.Items == nil {
		return order.Order{}, ErrEmptyMutation
	}
	o := s.reconcile(orderID, m, itemID)
	s.log.Info(ctx, "order item deleted", "order_id", orderID, "item_id", itemID)
	return o, nil
}

// reconcile applies m to the cached order orderID and returns the result.
// The server's order wins, its item list wins over the order's. When the
// answer carries no item list at all, the cached items are kept minus
// removedItem and only the totals come from the server. An order that is
// not cached stays uncached.
func (s *Store) reconcile(orderID string, m order.Mutation, removedItem string) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.orderList, func(o order.Order) bool { return o.ID == orderID })
	var o order.Order
	switch {
	case m.Order != nil:
		o = m.Order.Clone()
	case i >= 0:
		o = s.orderList[i].Clone()
	default:
		o = order.Order{ID: orderID}
	}
	switch {
	case m.Items != nil:
		o.Items = slices.Clone(m.Items)
	case m.Order != nil && m.Order.Items != nil:
		// already taken from the order
	case i >= 0:
		o.Items = s.orderList[i].WithoutItem(removedItem)
	}
	if o.Items == nil {
		o.Items = []order.Item{}
	}
	o.ID = orderID

	if i >= 0 {
		s.orderList[i] = o
	}
	return o.Clone()
}

func mustOrderID(id string) {
	if id == "" {
		panic("cache: empty order id")
	}
}
