package httpapi_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/pkg/httpapi"
	"orderdesk/pkg/metrics"
	"orderdesk/pkg/order"
	ordermem "orderdesk/pkg/order/memory"
	"orderdesk/pkg/product"
	productmem "orderdesk/pkg/product/memory"
	"orderdesk/pkg/session"
)

type fixture struct {
	srv      *httptest.Server
	orders   *ordermem.Repository
	products *productmem.Repository
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newFixture(t *testing.T, mutate func(*httpapi.Config)) *fixture {
	t.Helper()
	f := &fixture{orders: ordermem.New(), products: productmem.New()}
	cfg := httpapi.Config{
		Orders:   f.orders,
		Products: f.products,
		Images:   httpapi.DirImages{Dir: t.TempDir(), BaseURL: "http://cdn.test/images"},
		Metrics:  metrics.NewServerMetrics("test"),
		NewID:    sequentialIDs(),
		Now:      func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.srv = httptest.NewServer(httpapi.New(cfg).Router())
	t.Cleanup(f.srv.Close)

	ctx := context.Background()
	require.NoError(t, f.products.Create(ctx, product.Product{
		ID: "p1", Name: "Baklawa", Price: 60, Category: product.CategorySweet, PiecesPerKilo: 40,
	}))
	require.NoError(t, f.orders.Create(ctx, order.Order{ID: "o1", CustomerName: "Amina"}))
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestListEnvelope(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[httpapi.Page[order.Order]](t, resp)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, "o1", page.Results[0].ID)
	assert.NotNil(t, page.Results[0].Items)

	resp = f.do(t, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decode[httpapi.Page[product.Product]](t, resp)
	assert.Equal(t, 1, products.Count)
	assert.Equal(t, "Baklawa", products.Results[0].Name)
}

func TestCreateAndGetOrder(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/orders", map[string]string{"customer_name": "Yanis"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[order.Order](t, resp)
	assert.Equal(t, "id-1", created.ID)
	assert.Equal(t, "Yanis", created.CustomerName)

	resp = f.do(t, http.MethodGet, "/orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[order.Order](t, resp).ID)

	resp = f.do(t, http.MethodGet, "/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddAndDeleteItem(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/orders/o1/items", order.ItemInput{ProductID: "p1", Weight: 0.5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decode[order.Mutation](t, resp)
	require.NotNil(t, added.Order)
	require.Len(t, added.Items, 1)
	assert.Equal(t, "Baklawa", added.Items[0].ProductName)
	assert.Equal(t, 20.0, added.Items[0].Pieces)
	assert.Equal(t, 30.0, added.Order.TotalPrice)

	itemID := added.Items[0].ID
	resp = f.do(t, http.MethodDelete, "/orders/o1/items/"+itemID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	removed := decode[order.Mutation](t, resp)
	assert.Empty(t, removed.Items)
	assert.Zero(t, removed.Order.TotalPrice)

	resp = f.do(t, http.MethodDelete, "/orders/o1/items/"+itemID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/orders/o1/items", order.ItemInput{ProductID: "p1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/orders/o1/items", order.ItemInput{ProductID: "nope", Pieces: 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/orders/missing/items", order.ItemInput{ProductID: "p1", Pieces: 2})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodDelete, "/orders/o1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/orders/o1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodPost, "/orders/o1/items", order.ItemInput{ProductID: "p1", Pieces: 10})

	resp := f.do(t, http.MethodGet, "/orders/o1/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=order-o1.csv", resp.Header.Get("Content-Disposition"))

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Baklawa", "10", "0.25", "15"}, rows[1])
	assert.Equal(t, "total", rows[2][0])
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/products", product.Input{Name: "ab", Price: 0})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, resp)
	assert.Contains(t, body.Fields, "product_name")
	assert.Contains(t, body.Fields, "product_price")
	assert.Contains(t, body.Fields, "product_category")

	resp = f.do(t, http.MethodPost, "/products", product.Input{
		Name: "Makrout", Price: 35, Category: product.CategorySweet, PiecesPerKilo: 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Makrout", decode[product.Product](t, resp).Name)
}

func TestUpdateProduct(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPatch, "/products/p1", map[string]any{"product_price": 65})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decode[product.Product](t, resp)
	assert.Equal(t, 65.0, patched.Price)
	assert.Equal(t, "Baklawa", patched.Name)

	resp = f.do(t, http.MethodPut, "/products/p1", map[string]any{"product_price": 65})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/products/missing", product.Input{
		Name: "Makrout", Price: 35, Category: product.CategorySweet, PiecesPerKilo: 30,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func uploadRequest(t *testing.T, url, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadProductImage(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.srv.Client().Do(uploadRequest(t, f.srv.URL+"/products/upload-image/p1", "photo.PNG"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Product product.Product `json:"product"`
	}](t, resp)
	assert.True(t, strings.HasPrefix(body.Product.ImageURL, "http://cdn.test/images/"))
	assert.True(t, strings.HasSuffix(body.Product.ImageURL, ".png"))

	stored, err := f.products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, body.Product.ImageURL, stored.ImageURL)

	bad, err := f.srv.Client().Do(uploadRequest(t, f.srv.URL+"/products/upload-image/p1", "notes.txt"))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

type failingUpdates struct {
	product.Repository
}

func (failingUpdates) Update(context.Context, product.Product) error {
	return errors.New("disk full")
}

func TestUploadRemovesImageWhenUpdateFails(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, func(c *httpapi.Config) {
		c.Products = failingUpdates{c.Products}
		c.Images = httpapi.DirImages{Dir: dir, BaseURL: "http://cdn.test/images"}
	})

	resp, err := f.srv.Client().Do(uploadRequest(t, f.srv.URL+"/products/upload-image/p1", "photo.png"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadDisabled(t *testing.T) {
	f := newFixture(t, func(c *httpapi.Config) { c.Images = nil })

	resp, err := f.srv.Client().Do(uploadRequest(t, f.srv.URL+"/products/upload-image/p1", "photo.png"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestSessionAuth(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture(t, func(c *httpapi.Config) {
		c.Sessions = session.New(rdb, time.Hour)
		c.Users = map[string]string{"admin": "secret"}
	})

	resp := f.do(t, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	login, err := client.Post(f.srv.URL+"/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"secret"}`))
	require.NoError(t, err)
	login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)

	list, err := client.Get(f.srv.URL + "/orders")
	require.NoError(t, err)
	defer list.Body.Close()
	assert.Equal(t, http.StatusOK, list.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.do(t, http.MethodGet, "/orders", nil)
	resp = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `handler="/orders"`)
}
