package postgres

import (
	"context"
	"database/sql"

	"orderdesk/pkg/order"
)

// Repository persists orders and their items in PostgreSQL. Aggregates are
// recomputed on every read rather than stored.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectItems = "SELECT id,order_id,product_id,product_name,product_image_url,total_number_pieces,total_weight,total_price FROM order_items"

// Create inserts a new order with its items.
func (r *Repository) Create(ctx context.Context, o order.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO orders (id,customer_name,created_at) VALUES ($1,$2,$3)",
		o.ID, o.CustomerName, o.CreatedAt); err != nil {
		return err
	}
	for _, it := range o.Items {
		if err := insertItem(ctx, tx, o.ID, it); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get retrieves an order by ID.
func (r *Repository) Get(ctx context.Context, id string) (order.Order, error) {
	return get(ctx, r.db, id)
}

// List fetches all orders in creation order.
func (r *Repository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id,customer_name,created_at FROM orders ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []order.Order{}
	index := map[string]int{}
	for rows.Next() {
		var o order.Order
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.CreatedAt); err != nil {
			return nil, err
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := r.db.QueryContext(ctx, selectItems+" ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		orderID, it, err := scanItem(itemRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Recalculate()
	}
	return orders, nil
}

// Delete removes an order by ID. Items go with it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id=$1", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return order.ErrNotFound
	}
	return nil
}

// AddItem inserts it and returns the updated order.
func (r *Repository) AddItem(ctx context.Context, orderID string, it order.Item) (order.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM orders WHERE id=$1 FOR UPDATE", orderID).Scan(&id)
	if err == sql.ErrNoRows {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, err
	}
	if err := insertItem(ctx, tx, orderID, it); err != nil {
		return order.Order{}, err
	}
	o, err := get(ctx, tx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	return o, tx.Commit()
}

// DeleteItem removes one item and returns the updated order.
func (r *Repository) DeleteItem(ctx context.Context, orderID, itemID string) (order.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE id=$1 AND order_id=$2", itemID, orderID)
	if err != nil {
		return order.Order{}, err
	}
	o, err := get(ctx, tx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.Order{}, order.ErrItemNotFound
	}
	return o, tx.Commit()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func get(ctx context.Context, q querier, id string) (order.Order, error) {
	var o order.Order
	err := q.QueryRowContext(ctx, "SELECT id,customer_name,created_at FROM orders WHERE id=$1", id).
		Scan(&o.ID, &o.CustomerName, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, err
	}
	rows, err := q.QueryContext(ctx, selectItems+" WHERE order_id=$1 ORDER BY seq", id)
	if err != nil {
		return order.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		_, it, err := scanItem(rows)
		if err != nil {
			return order.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return order.Order{}, err
	}
	o.Recalculate()
	return o, nil
}

func insertItem(ctx context.Context, tx *sql.Tx, orderID string, it order.Item) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO order_items (id,order_id,product_id,product_name,product_image_url,total_number_pieces,total_weight,total_price) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)",
		it.ID, orderID, it.ProductID, it.ProductName, it.ProductImageURL, it.Pieces, it.Weight, it.Price)
	return err
}

func scanItem(rows *sql.Rows) (string, order.Item, error) {
	var orderID string
	var it order.Item
	err := rows.Scan(&it.ID, &orderID, &it.ProductID, &it.ProductName, &it.ProductImageURL, &it.Pieces, &it.Weight, &it.Price)
	return orderID, it, err
}
