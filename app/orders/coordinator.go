// Package orders implements checkout: the all-or-nothing protocol that
// verifies stock, prices the order, persists it with its items and
// decrements inventory, plus the HTTP surface for orders.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/mytheresa/go-storefront/app/database"
	"github.com/mytheresa/go-storefront/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionProvider hands out scoped transactional clients.
type TransactionProvider interface {
	AcquireTransaction(ctx context.Context) (*database.Client, error)
}

type Coordinator struct {
	db  TransactionProvider
	log *zap.Logger

	created metric.Int64Counter
	failed  metric.Int64Counter
}

func NewCoordinator(db TransactionProvider, log *zap.Logger, meter metric.Meter) (*Coordinator, error) {
	created, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders persisted by checkout"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("orders_failed_total",
		metric.WithDescription("Checkouts rolled back, by reason"))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Coordinator{
		db:      db,
		log:     log.Named("orders"),
		created: created,
		failed:  failed,
	}, nil
}

// CreateOrder runs one checkout inside a single transaction. On any failure
// the transaction is rolled back before the error is returned, so nothing is
// persisted and no stock is decremented.
func (c *Coordinator) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if err := checkRequest(req); err != nil {
		return nil, c.fail(ctx, req, err)
	}

	client, err := c.db.AcquireTransaction(ctx)
	if err != nil {
		if errors.Is(err, database.ErrNotConnected) {
			return nil, c.fail(ctx, req, err)
		}
		return nil, c.fail(ctx, req, &TransactionError{Op: "acquire connection", Err: err})
	}
	defer client.Release()

	tx, err := client.Begin(&sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, c.fail(ctx, req, &TransactionError{Op: "begin", Err: err})
	}

	order, err := fulfill(tx, req)
	if err != nil {
		if rbErr := client.Rollback(); rbErr != nil {
			c.log.Error("rollback failed", zap.Error(rbErr))
		}
		return nil, c.fail(ctx, req, err)
	}

	if err := client.Commit(); err != nil {
		return nil, c.fail(ctx, req, &TransactionError{Op: "commit", Err: err})
	}

	c.created.Add(ctx, 1)
	c.log.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("customer_email", order.CustomerEmail),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)))
	return order, nil
}

// fulfill locks every referenced product row in ascending id order, checks
// the request line by line, then writes the order, its items and the stock
// decrements.
func fulfill(tx *gorm.DB, req models.CreateOrderRequest) (*models.Order, error) {
	var locked []models.Product
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "price", "stock_quantity").
		Where("id IN ?", productIDs(req.Items)).
		Order("id").
		Find(&locked).Error; err != nil {
		return nil, &TransactionError{Op: "lock products", Err: err}
	}

	byID := make(map[int64]models.Product, len(locked))
	for _, p := range locked {
		byID[p.ID] = p
	}

	total := decimal.Zero
	reserved := make(map[int64]int, len(byID))
	items := make([]models.OrderItem, 0, len(req.Items))

	for _, line := range req.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}

		available := product.StockQuantity - reserved[line.ProductID]
		if available < line.Quantity {
			return nil, &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			}
		}
		reserved[line.ProductID] += line.Quantity

		item := models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     product.Price,
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}

	order := &models.Order{
		CustomerEmail: req.CustomerEmail,
		TotalAmount:   total,
		Status:        models.OrderStatusPending,
	}
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return nil, &TransactionError{Op: "insert order", Err: err}
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.Create(&items[i]).Error; err != nil {
			return nil, &TransactionError{Op: "insert order item", Err: err}
		}

		res := tx.Model(&models.Product{}).
			Where("id = ?", items[i].ProductID).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", items[i].Quantity))
		if res.Error != nil {
			return nil, &TransactionError{Op: "decrement stock", Err: res.Error}
		}
		if res.RowsAffected != 1 {
			return nil, &TransactionError{Op: "decrement stock", Err: models.ErrProductNotFound}
		}
	}

	order.Items = items
	return order, nil
}

func (c *Coordinator) fail(ctx context.Context, req models.CreateOrderRequest, err error) error {
	reason := failureReason(err)
	c.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))

	fields := []zap.Field{
		zap.String("reason", reason),
		zap.String("customer_email", req.CustomerEmail),
		zap.Int("items", len(req.Items)),
		zap.Error(err),
	}
	var notFound *ProductNotFoundError
	var noStock *InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		fields = append(fields, zap.Int64("product_id", notFound.ProductID))
	case errors.As(err, &noStock):
		fields = append(fields, zap.Int64("product_id", noStock.ProductID))
	}

	if IsBusinessError(err) {
		c.log.Warn("order rejected", fields...)
	} else {
		fields = append(fields, zap.Bool("serialization_failure", database.IsSerializationFailure(err)))
		c.log.Error("order failed", fields...)
	}
	return err
}

func checkRequest(req models.CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return ErrInvalidOrder
	}
	for _, line := range req.Items {
		if line.ProductID <= 0 || line.Quantity <= 0 {
			return ErrInvalidOrder
		}
	}
	return nil
}

func productIDs(lines []models.OrderLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
