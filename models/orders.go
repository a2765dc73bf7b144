package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is created exactly once per successful checkout and owns its items.
// TotalAmount equals the sum of Price * Quantity over Items.
type Order struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	CustomerEmail string          `gorm:"size:255;not null" json:"customer_email"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (o *Order) TableName() string {
	return "orders"
}

// OrderItem references a product and snapshots its unit price at checkout time.
type OrderItem struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	OrderID   int64           `gorm:"not null;index" json:"order_id"`
	ProductID int64           `gorm:"not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

func (i *OrderItem) TableName() string {
	return "order_items"
}

// Subtotal is the snapshot price times the quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CreateOrderRequest is a validated checkout request.
type CreateOrderRequest struct {
	CustomerEmail string
	Items         []OrderLine
}

type OrderLine struct {
	ProductID int64
	Quantity  int
}
