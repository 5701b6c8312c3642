package order

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"orderdesk/pkg/product"
)

// Item is one line of an Order. Product fields are copied at order time so
// later catalog edits do not rewrite past orders.
type Item struct {
	ID              string  `json:"id"`
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	ProductImageURL string  `json:"product_image_url,omitempty"`
	Pieces          float64 `json:"total_number_pieces"`
	Weight          float64 `json:"total_weight"`
	Price           float64 `json:"total_price"`
}

// Order represents a customer purchase order. The Total fields are computed
// by the server from Items.
type Order struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	CreatedAt    time.Time `json:"created_at"`
	Items        []Item    `json:"order_items"`
	TotalPrice   float64   `json:"total_price"`
	TotalWeight  float64   `json:"total_weight"`
	TotalPieces  float64   `json:"total_number_pieces"`
}

// Clone returns a copy of o that shares no memory with it.
func (o Order) Clone() Order {
	o.Items = slices.Clone(o.Items)
	return o
}

// HasItem reports whether o contains an item with the given id.
func (o Order) HasItem(id string) bool {
	return slices.ContainsFunc(o.Items, func(it Item) bool { return it.ID == id })
}

// WithoutItem returns a copy of o's items minus the one with the given id.
func (o Order) WithoutItem(id string) []Item {
	return slices.DeleteFunc(slices.Clone(o.Items), func(it Item) bool { return it.ID == id })
}

// Recalculate recomputes the aggregate fields from Items.
func (o *Order) Recalculate() {
	if o.Items == nil {
		o.Items = []Item{}
	}
	price, weight, pieces := decimal.Zero, decimal.Zero, decimal.Zero
	for _, it := range o.Items {
		price = price.Add(decimal.NewFromFloat(it.Price))
		weight = weight.Add(decimal.NewFromFloat(it.Weight))
		pieces = pieces.Add(decimal.NewFromFloat(it.Pieces))
	}
	o.TotalPrice = price.Round(2).InexactFloat64()
	o.TotalWeight = weight.Round(3).InexactFloat64()
	o.TotalPieces = pieces.Round(0).InexactFloat64()
}

// ItemInput is what a client sends to add a line to an order: a product and
// either a weight in kilos or a number of pieces.
type ItemInput struct {
	ProductID string  `json:"product_id"`
	Weight    float64 `json:"weight,omitempty"`
	Pieces    float64 `json:"pieces,omitempty"`
}

var (
	ErrMissingProduct  = errors.New("product_id is required")
	ErrInvalidQuantity = errors.New("exactly one of weight or pieces must be positive")
)

// Validate checks in before dispatch.
func (in ItemInput) Validate() error {
	if strings.TrimSpace(in.ProductID) == "" {
		return ErrMissingProduct
	}
	if in.Weight < 0 || in.Pieces < 0 || (in.Weight > 0) == (in.Pieces > 0) {
		return ErrInvalidQuantity
	}
	return nil
}

// NewItem prices in against p. The missing quantity is derived from the
// product's pieces per kilo.
func NewItem(id string, p product.Product, in ItemInput) (Item, error) {
	if err := in.Validate(); err != nil {
		return Item{}, err
	}
	if p.PiecesPerKilo <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	ppk := decimal.NewFromFloat(p.PiecesPerKilo)
	var weight, pieces decimal.Decimal
	if in.Weight > 0 {
		weight = decimal.NewFromFloat(in.Weight)
		pieces = weight.Mul(ppk).Round(0)
	} else {
		pieces = decimal.NewFromFloat(in.Pieces)
		weight = pieces.DivRound(ppk, 3)
	}
	price := weight.Mul(decimal.NewFromFloat(p.Price)).Round(2)
	return Item{
		ID:              id,
		ProductID:       p.ID,
		ProductName:     p.Name,
		ProductImageURL: p.ImageURL,
		Pieces:          pieces.InexactFloat64(),
		Weight:          weight.Round(3).InexactFloat64(),
		Price:           price.InexactFloat64(),
	}, nil
}

// Mutation is the server's answer to an item add or delete: the updated
// order and/or its item list.
type Mutation struct {
	Order *Order `json:"order,omitempty"`
	Items []Item `json:"order_items"`
}

// Repository defines behavior for persisting orders.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context) ([]Order, error)
	Delete(ctx context.Context, id string) error
	AddItem(ctx context.Context, orderID string, it Item) (Order, error)
	DeleteItem(ctx context.Context, orderID, itemID string) (Order, error)
}

var (
	// ErrNotFound indicates the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrItemNotFound indicates the order exists but has no such item.
	ErrItemNotFound = errors.New("order item not found")
)
