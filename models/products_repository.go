package models

import (
	"context"
	"errors"
)

// Querier runs a raw statement and scans the result into dest, returning the
// number of rows scanned.
type Querier interface {
	Query(ctx context.Context, dest any, query string, args ...any) (int64, error)
}

type ProductsRepository struct {
	db Querier
}

// ErrProductNotFound is returned when a product is not found.
var ErrProductNotFound = errors.New("product not found")

func NewProductsRepository(db Querier) *ProductsRepository {
	return &ProductsRepository{
		db: db,
	}
}

// FindAll returns a page of products, newest first, and the total count.
func (r *ProductsRepository) FindAll(ctx context.Context, offset, limit int) ([]Product, int64, error) {
	var total int64
	if _, err := r.db.Query(ctx, &total, "SELECT COUNT(*) FROM products"); err != nil {
		return nil, 0, err
	}

	products := make([]Product, 0)
	if _, err := r.db.Query(ctx, &products,
		"SELECT * FROM products ORDER BY created_at DESC, id DESC OFFSET ? LIMIT ?",
		offset, limit); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *ProductsRepository) FindByID(ctx context.Context, id int64) (*Product, error) {
	var product Product
	n, err := r.db.Query(ctx, &product, "SELECT * FROM products WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrProductNotFound
	}
	return &product, nil
}

// Create inserts the product and fills in its generated id and created_at.
func (r *ProductsRepository) Create(ctx context.Context, product *Product) error {
	_, err := r.db.Query(ctx, product,
		`INSERT INTO products (name, description, price, image_url, stock_quantity)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING *`,
		product.Name, product.Description, product.Price, product.ImageURL, product.StockQuantity)
	return err
}
