// Package client talks to the order and product API. Every call takes a
// context; cancelling it aborts the underlying request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"orderdesk/pkg/logger"
	"orderdesk/pkg/order"
	"orderdesk/pkg/product"
)

const (
	OrdersPath   = "/orders"
	ProductsPath = "/products"

	DefaultTimeout = 30 * time.Second
)

// Client is safe for concurrent use.
type Client struct {
	base   *url.URL
	http    *http.Client
	timeout time.Duration
	log     *logger.Logger
	newKey  func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default client. It has no
// effect together with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{base: u, timeout: DefaultTimeout, log: logger.Nop(), newKey: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Jar:       jar,
			Timeout:   c.timeout,
		}
	}
	return c, nil
}

// Page is the envelope of every list endpoint.
type Page[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

// Artifact is a generated export.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// List fetches path and unwraps the {count, results} envelope.
func List[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var page Page[T]
	if err := c.do(ctx, "list "+path, http.MethodGet, path, query, nil, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return page.Results, nil
}

// Collection binds List to one endpoint.
type Collection[T any] struct {
	c    *Client
	path string
}

// NewCollection returns the collection served at path.
func NewCollection[T any](c *Client, path string) Collection[T] {
	return Collection[T]{c: c, path: path}
}

// List fetches the collection.
func (col Collection[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	return List[T](ctx, col.c, col.path, query)
}

// Login opens a session. The session cookie is kept in the client's jar.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, "login", http.MethodPost, "/login", nil, jsonBody(body), nil)
}

// ListOrders fetches all orders.
func (c *Client) ListOrders(ctx context.Context, query url.Values) ([]order.Order, error) {
	return NewCollection[order.Order](c, OrdersPath).List(ctx, query)
}

// ListProducts fetches the catalog.
func (c *Client) ListProducts(ctx context.Context, query url.Values) ([]product.Product, error) {
	return NewCollection[product.Product](c, ProductsPath).List(ctx, query)
}

// CreateOrder opens an empty order for customer.
func (c *Client) CreateOrder(ctx context.Context, customer string) (order.Order, error) {
	var o order.Order
	body := map[string]string{"customer_name": customer}
	err := c.do(ctx, "orders.create", http.MethodPost, OrdersPath, nil, jsonBody(body), &o)
	return o, err
}

// DeleteOrder removes an order.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, "orders.delete", http.MethodDelete, OrdersPath+"/"+url.PathEscape(orderID), nil, nil, nil)
}

// AddOrderItem appends an item and returns the server's view of the order.
func (c *Client) AddOrderItem(ctx context.Context, orderID string, in order.ItemInput) (order.Mutation, error) {
	var m order.Mutation
	path := OrdersPath + "/" + url.PathEscape(orderID) + "/items"
	err := c.do(ctx, "orders.add_item", http.MethodPost, path, nil, jsonBody(in), &m)
	return m, err
}

// DeleteOrderItem removes an item and returns the server's view of the order.
func (c *Client) DeleteOrderItem(ctx context.Context, orderID, itemID string) (order.Mutation, error) {
	var m order.Mutation
	path := OrdersPath + "/" + url.PathEscape(orderID) + "/items/" + url.PathEscape(itemID)
	err := c.do(ctx, "orders.delete_item", http.MethodDelete, path, nil, nil, &m)
	return m, err
}

// ExportOrder downloads the order export.
func (c *Client) ExportOrder(ctx context.Context, orderID string) (Artifact, error) {
	var a Artifact
	path := OrdersPath + "/" + url.PathEscape(orderID) + "/export"
	err := c.do(ctx, "orders.export", http.MethodGet, path, nil, nil, &a)
	return a, err
}

// CreateProduct adds a product to the catalog.
func (c *Client) CreateProduct(ctx context.Context, in product.Input) (product.Product, error) {
	var p product.Product
	err := c.do(ctx, "products.create", http.MethodPost, ProductsPath, nil, jsonBody(in), &p)
	return p, err
}

// UpdateProduct replaces the editable fields of p.
func (c *Client) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	var out product.Product
	path := ProductsPath + "/" + url.PathEscape(p.ID)
	err := c.do(ctx, "products.update", http.MethodPut, path, nil, jsonBody(p.Input()), &out)
	return out, err
}

// UploadProductImage sends r as the product's image.
func (c *Client) UploadProductImage(ctx context.Context, productID, filename string, r io.Reader) (product.Product, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return product.Product{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return product.Product{}, err
	}
	if err := mw.Close(); err != nil {
		return product.Product{}, err
	}

	var out struct {
		Product product.Product `json:"product"`
	}
	path := ProductsPath + "/upload-image/" + url.PathEscape(productID)
	body := &requestBody{contentType: mw.FormDataContentType(), data: buf.Bytes()}
	err = c.do(ctx, "products.upload_image", http.MethodPost, path, nil, body, &out)
	return out.Product, err
}

type requestBody struct {
	contentType string
	data        []byte
	err         error
}

func jsonBody(v any) *requestBody {
	b, err := json.Marshal(v)
	return &requestBody{contentType: "application/json", data: b, err: err}
}

type serverError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body *requestBody, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		if body.err != nil {
			return &Error{Op: op, Kind: KindDecode, Err: body.err}
		}
		rd = bytes.NewReader(body.data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", c.newKey())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		kind := KindTransport
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			kind = KindCanceled
		}
		c.log.Debug(ctx, "request failed", "op", op, "kind", kind.String(), "error", err)
		return &Error{Op: op, Kind: kind, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug(ctx, "request", "op", op, "method", method, "path", path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(op, resp)
	}
	switch v := out.(type) {
	case nil:
		return nil
	case *Artifact:
		return readArtifact(op, resp, v)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		kind := KindDecode
		if errors.Is(err, context.Canceled) {
			kind = KindCanceled
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func responseError(op string, resp *http.Response) error {
	e := &Error{Op: op, Kind: KindServer, Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNotFound {
		e.Kind = KindNotFound
	}
	var se serverError
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&se); err == nil {
		e.Message = se.Error
		if len(se.Fields) > 0 {
			e.Err = &product.ValidationError{Fields: se.Fields}
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

func readArtifact(op string, resp *http.Response, a *Artifact) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		kind := KindTransport
		if errors.Is(err, context.Canceled) {
			kind = KindCanceled
		}
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode, Err: err}
	}
	a.Data = data
	a.ContentType = resp.Header.Get("Content-Type")
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		a.Filename = params["filename"]
	}
	return nil
}
