package postgres

import (
	"context"
	"database/sql"

	"orderdesk/pkg/product"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectProduct = "SELECT id,product_name,product_price,product_category,product_piece_per_kilo,product_image_url FROM products"

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, p product.Product) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO products (id,product_name,product_price,product_category,product_piece_per_kilo,product_image_url) VALUES ($1,$2,$3,$4,$5,$6)",
		p.ID, p.Name, p.Price, string(p.Category), p.PiecesPerKilo, p.ImageURL)
	return err
}

// Get retrieves a product by ID.
func (r *Repository) Get(ctx context.Context, id string) (product.Product, error) {
	p, err := scan(r.db.QueryRowContext(ctx, selectProduct+" WHERE id=$1", id))
	if err == sql.ErrNoRows {
		return product.Product{}, product.ErrNotFound
	}
	return p, err
}

// List fetches all products in creation order.
func (r *Repository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.QueryContext(ctx, selectProduct+" ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []product.Product{}
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Update updates an existing product.
func (r *Repository) Update(ctx context.Context, p product.Product) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET product_name=$2,product_price=$3,product_category=$4,product_piece_per_kilo=$5,product_image_url=$6 WHERE id=$1",
		p.ID, p.Name, p.Price, string(p.Category), p.PiecesPerKilo, p.ImageURL)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return product.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (product.Product, error) {
	var p product.Product
	var category string
	err := s.Scan(&p.ID, &p.Name, &p.Price, &category, &p.PiecesPerKilo, &p.ImageURL)
	p.Category = product.Category(category)
	return p, err
}
