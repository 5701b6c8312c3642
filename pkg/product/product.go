// Package product defines the catalog of items sold by weight or by piece.
package product

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Category groups products on the catalog page.
type Category string

const (
	CategorySweet  Category = "Sucré"
	CategorySavory Category = "Salé"
)

// Categories lists every accepted category.
var Categories = []Category{CategorySweet, CategorySavory}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product is a catalog entry. Price is per kilo.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"product_name"`
	Price         float64  `json:"product_price"`
	Category      Category `json:"product_category"`
	PiecesPerKilo float64  `json:"product_piece_per_kilo"`
	ImageURL      string   `json:"product_image_url,omitempty"`
}

// Input carries the user-editable fields of a Product.
type Input struct {
	Name          string   `json:"product_name"`
	Price         float64  `json:"product_price"`
	Category      Category `json:"product_category"`
	PiecesPerKilo float64  `json:"product_piece_per_kilo"`
}

// Input returns the editable fields of p.
func (p Product) Input() Input {
	return Input{Name: p.Name, Price: p.Price, Category: p.Category, PiecesPerKilo: p.PiecesPerKilo}
}

// Apply copies in onto p, leaving the id and image untouched.
func (p Product) Apply(in Input) Product {
	p.Name = in.Name
	p.Price = in.Price
	p.Category = in.Category
	p.PiecesPerKilo = in.PiecesPerKilo
	return p
}

const (
	MinNameLen = 3
	MaxNameLen = 50
	MinPrice   = 0.01
	MaxPrice   = 100_000
)

// ValidationError maps field names to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

// Validate checks in before it is sent anywhere.
func (in Input) Validate() error {
	fields := map[string]string{}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.Name)); n < MinNameLen || n > MaxNameLen {
		fields["product_name"] = fmt.Sprintf("must be between %d and %d characters", MinNameLen, MaxNameLen)
	}
	if in.Price < MinPrice || in.Price > MaxPrice {
		fields["product_price"] = fmt.Sprintf("must be between %.2f and %d", MinPrice, MaxPrice)
	}
	if !in.Category.Valid() {
		fields["product_category"] = "select a category"
	}
	if in.PiecesPerKilo <= 0 {
		fields["product_piece_per_kilo"] = "pieces per kilo is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// DisplayImageURL rewrites authenticated storage links into public ones so
// they render without a browser session.
func DisplayImageURL(url string) string {
	return strings.Replace(url, "storage.cloud.google.com", "storage.googleapis.com", 1)
}

// Sort orders ps by category, then by name, in place.
func Sort(ps []Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Category != ps[j].Category {
			return ps[i].Category < ps[j].Category
		}
		return strings.ToLower(ps[i].Name) < strings.ToLower(ps[j].Name)
	})
}

// Filter returns the products whose name contains term, ignoring case.
func Filter(ps []Product, term string) []Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return ps
	}
	out := make([]Product, 0, len(ps))
	for _, p := range ps {
		if strings.Contains(strings.ToLower(p.Name), term) {
			out = append(out, p)
		}
	}
	return out
}

// Repository defines behavior for persisting products.
type Repository interface {
	Create(ctx context.Context, p Product) error
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, p Product) error
}

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")
