// Package view holds the page-level logic that sits on top of the cache:
// resolving an order by id, gating destructive actions and turning results
// into user notifications.
package view

import (
	"context"
	"errors"
	"io"

	"orderdesk/pkg/cache"
	"orderdesk/pkg/client"
	"orderdesk/pkg/order"
	"orderdesk/pkg/product"
)

// ErrOrderNotFound is reported when the orders are loaded and the requested
// id is not among them.
var ErrOrderNotFound = errors.New("order not found")

// Level is a notification severity.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Notification is a transient message for the user.
type Notification struct {
	Level   Level
	Message string
}

// Notifier displays notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type discard struct{}

func (discard) Notify(Notification) {}

// report notifies the outcome of an action. Cancellations, declined
// confirmations and field validation errors are not reported.
func report(n Notifier, err error, success string) {
	switch {
	case err == nil:
		if success != "" {
			n.Notify(Notification{Level: LevelSuccess, Message: success})
		}
	case client.IsCanceled(err), errors.Is(err, cache.ErrNotConfirmed), isFieldError(err):
	default:
		n.Notify(Notification{Level: LevelError, Message: client.Message(err)})
	}
}

// isFieldError reports whether err describes bad form input, which the
// caller shows next to the fields instead.
func isFieldError(err error) bool {
	var verr *product.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, order.ErrMissingProduct) ||
		errors.Is(err, order.ErrInvalidQuantity)
}

// OrderDetails is the page showing one order.
type OrderDetails struct {
	store   *cache.Store
	orderID string
	confirm cache.Confirmer
	notify  Notifier
}

// NewOrderDetails returns the page for orderID. A nil notifier discards
// notifications.
func NewOrderDetails(store *cache.Store, orderID string, confirm cache.Confirmer, notify Notifier) *OrderDetails {
	if notify == nil {
		notify = discard{}
	}
	return &OrderDetails{store: store, orderID: orderID, confirm: confirm, notify: notify}
}

// Load resolves the order from the cache, fetching the orders if nothing is
// loaded or loading, and waiting while a load is in flight. When the orders
// have never loaded, a previous failure is retried once.
func (v *OrderDetails) Load(ctx context.Context) (order.Order, error) {
	retried := false
	for {
		o, res := v.store.FindOrder(v.orderID)
		switch res {
		case cache.Found:
			return o, nil
		case cache.NotFound:
			st := v.store.OrdersState()
			if st.Err == nil {
				return order.Order{}, ErrOrderNotFound
			}
			if retried || st.Loaded {
				return order.Order{}, st.Err
			}
			retried = true
			if err := v.store.FetchOrders(ctx); err != nil {
				return order.Order{}, err
			}
			continue
		}

		var err error
		if v.store.OrdersState().Loading {
			err = v.store.WaitOrders(ctx)
		} else {
			err = v.store.FetchOrders(ctx)
		}
		if err != nil {
			return order.Order{}, err
		}
	}
}

// AddItem adds a line to the order.
func (v *OrderDetails) AddItem(ctx context.Context, in order.ItemInput) (order.Order, error) {
	o, err := v.store.AddOrderItem(ctx, v.orderID, in)
	report(v.notify, err, "Item added")
	return o, err
}

// DeleteItem removes a line after confirmation.
func (v *OrderDetails) DeleteItem(ctx context.Context, itemID string) (order.Order, error) {
	o, err := v.store.DeleteOrderItem(ctx, v.orderID, itemID, v.confirm)
	report(v.notify, err, "Item deleted")
	return o, err
}

// DeleteOrder removes the whole order after confirmation.
func (v *OrderDetails) DeleteOrder(ctx context.Context) error {
	err := v.store.DeleteOrder(ctx, v.orderID, v.confirm)
	report(v.notify, err, "Order deleted")
	return err
}

// Export downloads the order export.
func (v *OrderDetails) Export(ctx context.Context) (client.Artifact, error) {
	a, err := v.store.ExportOrder(ctx, v.orderID)
	report(v.notify, err, "")
	return a, err
}

// Products is the catalog page.
type Products struct {
	store  *cache.Store
	notify Notifier
}

// NewProducts returns the catalog page. A nil notifier discards
// notifications.
func NewProducts(store *cache.Store, notify Notifier) *Products {
	if notify == nil {
		notify = discard{}
	}
	return &Products{store: store, notify: notify}
}

// List returns the catalog sorted by category then name, narrowed to names
// containing search. Image links are rewritten for display.
func (v *Products) List(ctx context.Context, search string) ([]product.Product, error) {
	st := v.store.ProductsState()
	var err error
	switch {
	case st.Loading:
		err = v.store.WaitProducts(ctx)
	case !st.Loaded && len(v.store.Products()) == 0:
		err = v.store.FetchProducts(ctx)
	}
	if err != nil {
		report(v.notify, err, "")
		return nil, err
	}

	ps := v.store.Products()
	product.Sort(ps)
	ps = product.Filter(ps, search)
	for i := range ps {
		ps[i].ImageURL = product.DisplayImageURL(ps[i].ImageURL)
	}
	return ps, nil
}

// Add creates a product. Validation errors are returned, not notified, so
// the caller can show them next to the fields.
func (v *Products) Add(ctx context.Context, in product.Input) (product.Product, error) {
	p, err := v.store.AddProduct(ctx, in)
	report(v.notify, err, "Product added")
	return p, err
}

// Update saves changes to a product.
func (v *Products) Update(ctx context.Context, p product.Product) (product.Product, error) {
	p, err := v.store.UpdateProduct(ctx, p)
	report(v.notify, err, "Product updated")
	return p, err
}

// UploadImage attaches an image to a product.
func (v *Products) UploadImage(ctx context.Context, productID, filename string, r io.Reader) (product.Product, error) {
	p, err := v.store.UploadProductImage(ctx, productID, filename, r)
	report(v.notify, err, "Image uploaded")
	return p, err
}
