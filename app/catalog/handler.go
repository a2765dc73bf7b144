package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mytheresa/go-storefront/app/web"
	"github.com/mytheresa/go-storefront/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Response struct {
	Total    int       `json:"total"`
	Products []Product `json:"products"`
}

type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	ImageURL      string    `json:"image_url"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProductProvider interface {
	FindAll(ctx context.Context, offset, limit int) ([]models.Product, int64, error)
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
}

type createProductPayload struct {
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url" validate:"max=512"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

type CatalogHandler struct {
	repo ProductProvider
	log  *zap.Logger
}

func NewCatalogHandler(r ProductProvider, log *zap.Logger) *CatalogHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogHandler{
		repo: r,
		log:  log,
	}
}

func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	// Parse pagination query params
	offset := 0
	limit := 10

	if oStr := r.URL.Query().Get("offset"); oStr != "" {
		if o, err := strconv.Atoi(oStr); err == nil && o >= 0 {
			offset = o
		}
	}

	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		if l, err := strconv.Atoi(lStr); err == nil {
			if l < 1 {
				limit = 1
			} else if l > 100 {
				limit = 100
			} else {
				limit = l
			}
		}
	}

	res, total, err := h.repo.FindAll(r.Context(), offset, limit)
	if err != nil {
		h.log.Error("error fetching products", zap.Error(err))
		web.Error(w, r, http.StatusInternalServerError, "Failed to fetch products", "")
		return
	}

	products := make([]Product, len(res))
	for i, p := range res {
		products[i] = toProduct(p)
	}

	web.JSON(w, http.StatusOK, Response{
		Total:    int(total),
		Products: products,
	})
}

func (h *CatalogHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		web.Error(w, r, http.StatusBadRequest, "Invalid product ID", "")
		return
	}

	product, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			web.Error(w, r, http.StatusNotFound, "Product not found", "")
			return
		}
		h.log.Error("error fetching product", zap.Int64("product_id", id), zap.Error(err))
		web.Error(w, r, http.StatusInternalServerError, "Failed to fetch product", "")
		return
	}

	web.JSON(w, http.StatusOK, toProduct(*product))
}

func (h *CatalogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input createProductPayload
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		web.Error(w, r, http.StatusBadRequest, "Invalid JSON body", "")
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.ImageURL = strings.TrimSpace(input.ImageURL)

	if err := web.Validate(input); err != nil {
		web.Error(w, r, http.StatusBadRequest, "Invalid product", err.Error())
		return
	}
	if !input.Price.IsPositive() {
		web.Error(w, r, http.StatusBadRequest, "Invalid product", "price must be a positive number")
		return
	}

	product := &models.Product{
		Name:          input.Name,
		Description:   input.Description,
		Price:         input.Price,
		ImageURL:      input.ImageURL,
		StockQuantity: input.StockQuantity,
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		h.log.Error("error creating product", zap.Error(err))
		web.Error(w, r, http.StatusInternalServerError, "Failed to create product", "")
		return
	}

	h.log.Info("product created", zap.Int64("product_id", product.ID))
	web.JSON(w, http.StatusCreated, toProduct(*product))
}

func toProduct(p models.Product) Product {
	return Product{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.InexactFloat64(),
		ImageURL:      p.ImageURL,
		StockQuantity: p.StockQuantity,
		CreatedAt:     p.CreatedAt,
	}
}
