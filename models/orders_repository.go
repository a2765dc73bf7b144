package models

import (
	"context"
	"errors"
)

// ErrOrderNotFound is returned when an order is not found.
var ErrOrderNotFound = errors.New("order not found")

type OrdersRepository struct {
	db Querier
}

func NewOrdersRepository(db Querier) *OrdersRepository {
	return &OrdersRepository{
		db: db,
	}
}

func (r *OrdersRepository) FindByID(ctx context.Context, id int64) (*Order, error) {
	var order Order
	n, err := r.db.Query(ctx, &order, "SELECT * FROM orders WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrOrderNotFound
	}
	return &order, nil
}

func (r *OrdersRepository) GetOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	items := make([]OrderItem, 0)
	if _, err := r.db.Query(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = ? ORDER BY id", orderID); err != nil {
		return nil, err
	}
	return items, nil
}
