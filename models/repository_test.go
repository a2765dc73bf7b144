package models_test

import (
	"context"
	"testing"

	"github.com/mytheresa/go-storefront/app/database/dbtest"
	"github.com/mytheresa/go-storefront/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductsRepository(t *testing.T) {
	m := dbtest.Start(t)
	repo := models.NewProductsRepository(m)
	ctx := context.Background()

	products, total, err := repo.FindAll(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, products)
	assert.Empty(t, products)

	mug := &models.Product{
		Name:          "Mug",
		Description:   "Stoneware",
		Price:         decimal.RequireFromString("12.99"),
		ImageURL:      "https://cdn.example.com/mug.png",
		StockQuantity: 4,
	}
	require.NoError(t, repo.Create(ctx, mug))
	assert.NotZero(t, mug.ID)
	assert.False(t, mug.CreatedAt.IsZero())

	tea := &models.Product{Name: "Tea", Price: decimal.RequireFromString("4.35")}
	require.NoError(t, repo.Create(ctx, tea))

	got, err := repo.FindByID(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)
	assert.Equal(t, "Stoneware", got.Description)
	assert.True(t, mug.Price.Equal(got.Price))
	assert.Equal(t, 4, got.StockQuantity)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	products, total, err = repo.FindAll(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, products, 2)
	assert.Equal(t, tea.ID, products[0].ID, "newest product first")

	products, total, err = repo.FindAll(ctx, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, products, 1)
	assert.Equal(t, mug.ID, products[0].ID)
}

func TestProductsRepository_RejectsNegativeStock(t *testing.T) {
	m := dbtest.Start(t)
	repo := models.NewProductsRepository(m)

	err := repo.Create(context.Background(), &models.Product{
		Name:          "Broken",
		Price:         decimal.NewFromInt(1),
		StockQuantity: -1,
	})
	assert.Error(t, err)
	assert.Zero(t, dbtest.CountRows(t, m, "products"))
}

func TestOrdersRepository_NotFound(t *testing.T) {
	m := dbtest.Start(t)
	repo := models.NewOrdersRepository(m)

	_, err := repo.FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	items, err := repo.GetOrderItems(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOrderItemSubtotal(t *testing.T) {
	item := models.OrderItem{Quantity: 3, Price: decimal.RequireFromString("12.99")}
	assert.Equal(t, "38.97", item.Subtotal().StringFixed(2))
}
