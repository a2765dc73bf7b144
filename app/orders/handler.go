package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mytheresa/go-storefront/app/database"
	"github.com/mytheresa/go-storefront/app/web"
	"github.com/mytheresa/go-storefront/models"
	"go.uber.org/zap"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
}

type OrderProvider interface {
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
}

type OrderItemResponse struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderResponse struct {
	ID            int64               `json:"id"`
	CustomerEmail string              `json:"customer_email"`
	TotalAmount   float64             `json:"total_amount"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	Items         []OrderItemResponse `json:"items,omitempty"`
}

type createOrderPayload struct {
	CustomerEmail string             `json:"customer_email" validate:"required,email,max=255"`
	Items         []orderLinePayload `json:"items" validate:"required,min=1,dive"`
}

type orderLinePayload struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type OrderHandler struct {
	creator OrderCreator
	repo    OrderProvider
	log     *zap.Logger
}

func NewOrderHandler(c OrderCreator, r OrderProvider, log *zap.Logger) *OrderHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderHandler{
		creator: c,
		repo:    r,
		log:     log,
	}
}

func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input createOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		web.Error(w, r, http.StatusBadRequest, "Invalid JSON body", "")
		return
	}

	input.CustomerEmail = strings.ToLower(strings.TrimSpace(input.CustomerEmail))
	if err := web.Validate(input); err != nil {
		web.Error(w, r, http.StatusBadRequest, "Invalid order", err.Error())
		return
	}

	req := models.CreateOrderRequest{
		CustomerEmail: input.CustomerEmail,
		Items:         make([]models.OrderLine, len(input.Items)),
	}
	for i, item := range input.Items {
		req.Items[i] = models.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.creator.CreateOrder(r.Context(), req)
	if err != nil {
		switch {
		case IsBusinessError(err):
			web.Error(w, r, http.StatusBadRequest, "Failed to create order", err.Error())
		case errors.Is(err, database.ErrNotConnected):
			web.Error(w, r, http.StatusServiceUnavailable, "Failed to create order", "database unavailable")
		default:
			web.Error(w, r, http.StatusInternalServerError, "Failed to create order", "")
		}
		return
	}

	web.JSON(w, http.StatusCreated, toOrderResponse(order, order.Items))
}

func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		web.Error(w, r, http.StatusBadRequest, "Invalid order ID", "")
		return
	}

	order, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			web.Error(w, r, http.StatusNotFound, "Order not found", "")
			return
		}
		h.log.Error("error fetching order", zap.Int64("order_id", id), zap.Error(err))
		web.Error(w, r, http.StatusInternalServerError, "Failed to fetch order", "")
		return
	}

	items, err := h.repo.GetOrderItems(r.Context(), id)
	if err != nil {
		h.log.Error("error fetching order items", zap.Int64("order_id", id), zap.Error(err))
		web.Error(w, r, http.StatusInternalServerError, "Failed to fetch order", "")
		return
	}

	web.JSON(w, http.StatusOK, toOrderResponse(order, items))
}

func toOrderResponse(order *models.Order, items []models.OrderItem) OrderResponse {
	resp := OrderResponse{
		ID:            order.ID,
		CustomerEmail: order.CustomerEmail,
		TotalAmount:   order.TotalAmount.InexactFloat64(),
		Status:        string(order.Status),
		CreatedAt:     order.CreatedAt,
		Items:         make([]OrderItemResponse, len(items)),
	}
	for i, item := range items {
		resp.Items[i] = OrderItemResponse{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.InexactFloat64(),
		}
	}
	return resp
}
