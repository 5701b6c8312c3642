package view_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/pkg/cache"
	"orderdesk/pkg/client"
	"orderdesk/pkg/httpapi"
	"orderdesk/pkg/order"
	ordermem "orderdesk/pkg/order/memory"
	"orderdesk/pkg/product"
	productmem "orderdesk/pkg/product/memory"
	"orderdesk/pkg/view"
)

type recorder struct {
	mu   sync.Mutex
	seen []view.Notification
}

func (r *recorder) Notify(n view.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *recorder) all() []view.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]view.Notification(nil), r.seen...)
}

func newStore(t *testing.T) (*cache.Store, *httptest.Server) {
	t.Helper()
	ctx := context.Background()
	orders, products := ordermem.New(), productmem.New()
	for _, p := range []product.Product{
		{ID: "p1", Name: "makrout", Price: 35, Category: product.CategorySweet, PiecesPerKilo: 30},
		{ID: "p2", Name: "Bourek", Price: 20, Category: product.CategorySavory, PiecesPerKilo: 25,
			ImageURL: "https://storage.cloud.google.com/bucket/bourek.png"},
		{ID: "p3", Name: "Baklawa", Price: 60, Category: product.CategorySweet, PiecesPerKilo: 40},
	} {
		require.NoError(t, products.Create(ctx, p))
	}
	require.NoError(t, orders.Create(ctx, order.Order{ID: "o1", CustomerName: "Amina"}))

	srv := httptest.NewServer(httpapi.New(httpapi.Config{Orders: orders, Products: products}).Router())
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL)
	require.NoError(t, err)
	store := cache.New(c, nil)
	t.Cleanup(store.Close)
	return store, srv
}

func TestOrderDetailsLoad(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	o, err := view.NewOrderDetails(store, "o1", cache.AlwaysConfirm, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Amina", o.CustomerName)

	_, err = view.NewOrderDetails(store, "o404", cache.AlwaysConfirm, nil).Load(ctx)
	assert.ErrorIs(t, err, view.ErrOrderNotFound)
}

func TestOrderDetailsLoadTransportError(t *testing.T) {
	store, srv := newStore(t)
	srv.Close()

	_, err := view.NewOrderDetails(store, "o1", nil, nil).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, view.ErrOrderNotFound)
	var cerr *client.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, client.KindTransport, cerr.Kind)
}

func TestOrderDetailsLoadRetriesFailedLoad(t *testing.T) {
	orders, products := ordermem.New(), productmem.New()
	require.NoError(t, orders.Create(context.Background(), order.Order{ID: "o1", CustomerName: "Amina"}))
	api := httpapi.New(httpapi.Config{Orders: orders, Products: products}).Router()

	var mu sync.Mutex
	failures := 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := failures > 0
		failures--
		mu.Unlock()
		if fail {
			http.Error(w, `{"error":"database unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		api.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL)
	require.NoError(t, err)
	store := cache.New(c, nil)
	t.Cleanup(store.Close)
	page := view.NewOrderDetails(store, "o1", nil, nil)

	_, err = page.Load(context.Background())
	require.Error(t, err)
	assert.False(t, store.OrdersState().Loaded)

	o, err := page.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Amina", o.CustomerName)
}

func TestOrderDetailsAddItemInvalidInput(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	rec := &recorder{}
	page := view.NewOrderDetails(store, "o1", nil, rec)
	_, err := page.Load(ctx)
	require.NoError(t, err)

	_, err = page.AddItem(ctx, order.ItemInput{ProductID: "p3"})
	assert.ErrorIs(t, err, order.ErrInvalidQuantity)
	_, err = page.AddItem(ctx, order.ItemInput{Pieces: 2})
	assert.ErrorIs(t, err, order.ErrMissingProduct)
	assert.Empty(t, rec.all())

	cached, err := page.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached.Items)
}

func TestOrderDetailsItems(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	rec := &recorder{}

	answer := false
	confirm := cache.ConfirmFunc(func(context.Context, string) (bool, error) { return answer, nil })
	page := view.NewOrderDetails(store, "o1", confirm, rec)
	_, err := page.Load(ctx)
	require.NoError(t, err)

	o, err := page.AddItem(ctx, order.ItemInput{ProductID: "p3", Pieces: 20})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 30.0, o.TotalPrice)

	_, err = page.DeleteItem(ctx, o.Items[0].ID)
	assert.ErrorIs(t, err, cache.ErrNotConfirmed)
	cached, err := page.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, cached.Items, 1)

	answer = true
	o, err = page.DeleteItem(ctx, o.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, o.Items)
	assert.Zero(t, o.TotalPrice)

	_, err = page.AddItem(ctx, order.ItemInput{ProductID: "nope", Pieces: 1})
	require.Error(t, err)

	assert.Equal(t, []view.Notification{
		{Level: view.LevelSuccess, Message: "Item added"},
		{Level: view.LevelSuccess, Message: "Item deleted"},
		{Level: view.LevelError, Message: "unknown product nope"},
	}, rec.all())
}

func TestOrderDetailsDeleteAndExport(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	page := view.NewOrderDetails(store, "o1", cache.AlwaysConfirm, nil)
	_, err := page.Load(ctx)
	require.NoError(t, err)

	a, err := page.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-o1.csv", a.Filename)

	require.NoError(t, page.DeleteOrder(ctx))
	assert.Empty(t, store.Orders())
	_, err = page.Load(ctx)
	assert.ErrorIs(t, err, view.ErrOrderNotFound)
}

func TestProductsList(t *testing.T) {
	store, _ := newStore(t)
	page := view.NewProducts(store, nil)
	ctx := context.Background()

	ps, err := page.List(ctx, "")
	require.NoError(t, err)
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"Bourek", "Baklawa", "makrout"}, names)
	assert.Equal(t, "https://storage.googleapis.com/bucket/bourek.png", ps[0].ImageURL)

	ps, err = page.List(ctx, "BAK")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "p3", ps[0].ID)

	assert.Equal(t, "https://storage.cloud.google.com/bucket/bourek.png",
		store.Products()[1].ImageURL, "the cache keeps the stored link")
}

func TestProductsMutations(t *testing.T) {
	store, _ := newStore(t)
	rec := &recorder{}
	page := view.NewProducts(store, rec)
	ctx := context.Background()
	_, err := page.List(ctx, "")
	require.NoError(t, err)

	_, err = page.Add(ctx, product.Input{Name: "x"})
	var verr *product.ValidationError
	require.ErrorAs(t, err, &verr)

	p, err := page.Add(ctx, product.Input{Name: "Griwech", Price: 30, Category: product.CategorySweet, PiecesPerKilo: 50})
	require.NoError(t, err)
	assert.Len(t, store.Products(), 4)

	p.Price = 32
	_, err = page.Update(ctx, p)
	require.NoError(t, err)

	_, err = page.UploadImage(ctx, p.ID, "griwech.txt", strings.NewReader("not an image"))
	require.Error(t, err)

	got := rec.all()
	require.Len(t, got, 3)
	assert.Equal(t, view.Notification{Level: view.LevelSuccess, Message: "Product added"}, got[0])
	assert.Equal(t, view.Notification{Level: view.LevelSuccess, Message: "Product updated"}, got[1])
	assert.Equal(t, view.LevelError, got[2].Level)
}
