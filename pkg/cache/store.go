// Package cache holds the orders and products the client currently knows
// about. Consumers read copies and change the cache only through Store
// operations, each of which applies the server's answer after it arrives.
package cache

import (
	"context"
	"errors"
	"io"
	"net/url"
	"slices"
	"sync"

	"orderdesk/pkg/client"
	"orderdesk/pkg/fetch"
	"orderdesk/pkg/logger"
	"orderdesk/pkg/order"
	"orderdesk/pkg/product"
)

// Backend is the part of the API the Store calls. *client.Client
// implements it.
type Backend interface {
	ListOrders(ctx context.Context, query url.Values) ([]order.Order, error)
	ListProducts(ctx context.Context, query url.Values) ([]product.Product, error)
	CreateProduct(ctx context.Context, in product.Input) (product.Product, error)
	UpdateProduct(ctx context.Context, p product.Product) (product.Product, error)
	UploadProductImage(ctx context.Context, productID, filename string, r io.Reader) (product.Product, error)
	DeleteOrder(ctx context.Context, orderID string) error
	ExportOrder(ctx context.Context, orderID string) (client.Artifact, error)
	AddOrderItem(ctx context.Context, orderID string, in order.ItemInput) (order.Mutation, error)
	DeleteOrderItem(ctx context.Context, orderID, itemID string) (order.Mutation, error)
}

// CollectionState describes one cached collection.
type CollectionState struct {
	Status  fetch.Status
	Loading bool
	Err     error
	// Loaded is true once the collection has been fetched successfully.
	Loaded bool
}

// Store is the client-side cache. It is safe for concurrent use.
type Store struct {
	backend  Backend
	log      *logger.Logger
	orders   *fetch.Fetcher[order.Order]
	products *fetch.Fetcher[product.Product]

	mu          sync.RWMutex
	orderList   []order.Order
	productList []product.Product
	ordersRev   uint64
	productsRev uint64
}

// New returns an empty Store.
func New(backend Backend, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{
		backend:  backend,
		log:      log,
		orders:   fetch.New[order.Order](fetch.ListerFunc[order.Order](backend.ListOrders), log),
		products: fetch.New[product.Product](fetch.ListerFunc[product.Product](backend.ListProducts), log),
	}
	s.orders.OnChange(s.applyOrders)
	s.products.OnChange(s.applyProducts)
	return s
}

func (s *Store) applyOrders(st fetch.State[order.Order]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Revision == s.ordersRev {
		return
	}
	s.ordersRev = st.Revision
	s.orderList = st.Data
}

func (s *Store) applyProducts(st fetch.State[product.Product]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Revision == s.productsRev {
		return
	}
	s.productsRev = st.Revision
	s.productList = st.Data
}

// FetchOrders (re)loads the orders, superseding a load in flight. It
// returns nil when a newer load replaced this one.
func (s *Store) FetchOrders(ctx context.Context) error {
	return settle(s.orders.Fetch(ctx, nil).Wait(ctx))
}

// FetchProducts (re)loads the catalog, superseding a load in flight. It
// returns nil when a newer load replaced this one.
func (s *Store) FetchProducts(ctx context.Context) error {
	return settle(s.products.Fetch(ctx, nil).Wait(ctx))
}

// WaitOrders blocks until no orders load is in flight.
func (s *Store) WaitOrders(ctx context.Context) error {
	return waitLatest(ctx, s.orders.Current)
}

// WaitProducts blocks until no products load is in flight.
func (s *Store) WaitProducts(ctx context.Context) error {
	return waitLatest(ctx, s.products.Current)
}

func waitLatest(ctx context.Context, current func() *fetch.Call) error {
	for {
		c := current()
		if c == nil {
			return nil
		}
		err := c.Wait(ctx)
		if errors.Is(err, fetch.ErrSuperseded) {
			continue
		}
		if ctx.Err() == nil && errors.Is(err, context.Canceled) {
			// someone else aborted that load
			return nil
		}
		return err
	}
}

func settle(err error) error {
	if errors.Is(err, fetch.ErrSuperseded) {
		return nil
	}
	return err
}

// Orders returns a copy of the cached orders.
func (s *Store) Orders() []order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]order.Order, len(s.orderList))
	for i, o := range s.orderList {
		out[i] = o.Clone()
	}
	return out
}

// Products returns a copy of the cached products.
func (s *Store) Products() []product.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.productList)
}

// OrdersState reports the orders collection's load state.
func (s *Store) OrdersState() CollectionState {
	return collectionState(s.orders.State())
}

// ProductsState reports the products collection's load state.
func (s *Store) ProductsState() CollectionState {
	return collectionState(s.products.State())
}

func collectionState[T any](st fetch.State[T]) CollectionState {
	return CollectionState{Status: st.Status, Loading: st.Loading, Err: st.Err, Loaded: st.Revision > 0}
}

// AddProduct validates in, creates it on the server and appends the result.
func (s *Store) AddProduct(ctx context.Context, in product.Input) (product.Product, error) {
	if err := in.Validate(); err != nil {
		return product.Product{}, err
	}
	p, err := s.backend.CreateProduct(ctx, in)
	if err != nil {
		return product.Product{}, err
	}
	s.mu.Lock()
	s.productList = append(s.productList, p)
	s.mu.Unlock()
	s.log.Info(ctx, "product added", "product_id", p.ID)
	return p, nil
}

// UpdateProduct saves p and replaces the cached product with the server's
// version. The cache is left alone when p is not cached.
func (s *Store) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	if err := p.Input().Validate(); err != nil {
		return product.Product{}, err
	}
	updated, err := s.backend.UpdateProduct(ctx, p)
	if err != nil {
		return product.Product{}, err
	}
	s.ApplyProduct(updated)
	return updated, nil
}

// UploadProductImage uploads an image and applies the returned product.
func (s *Store) UploadProductImage(ctx context.Context, productID, filename string, r io.Reader) (product.Product, error) {
	p, err := s.backend.UploadProductImage(ctx, productID, filename, r)
	if err != nil {
		return product.Product{}, err
	}
	s.ApplyProduct(p)
	return p, nil
}

// ApplyProduct replaces the cached product with p's id. It reports whether
// one was found.
func (s *Store) ApplyProduct(p product.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.productList, func(c product.Product) bool { return c.ID == p.ID })
	if i < 0 {
		return false
	}
	s.productList[i] = p
	return true
}

// DeleteOrder asks confirm, deletes the order on the server, then drops it
// from the cache.
func (s *Store) DeleteOrder(ctx context.Context, orderID string, confirm Confirmer) error {
	if err := ask(ctx, confirm, DeleteOrderPrompt); err != nil {
		return err
	}
	if err := s.backend.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.mu.Lock()
	s.orderList = slices.DeleteFunc(s.orderList, func(o order.Order) bool { return o.ID == orderID })
	s.mu.Unlock()
	s.log.Info(ctx, "order deleted", "order_id", orderID)
	return nil
}

// ExportOrder asks the server for an export. The cache is not touched.
func (s *Store) ExportOrder(ctx context.Context, orderID string) (client.Artifact, error) {
	return s.backend.ExportOrder(ctx, orderID)
}

// Close cancels outstanding loads. Later loads never reach the cache.
func (s *Store) Close() {
	s.orders.Close()
	s.products.Close()
}
