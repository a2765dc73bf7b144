// Package dbtest starts a throwaway Postgres for integration tests and hands
// back a connected, migrated Manager.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/mytheresa/go-storefront/app/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// Config starts a Postgres container and returns a Config pointing at it.
// The container is terminated when the test ends.
func Config(t *testing.T) database.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.DefaultConfig()
	cfg.Host = host
	cfg.Port = port.Int()
	cfg.User = "testuser"
	cfg.Password = "testpass"
	cfg.Name = "testdb"
	cfg.Retry.BaseDelay = 100 * time.Millisecond
	return cfg
}

// Start returns a connected Manager with the schema applied.
func Start(t *testing.T) *database.Manager {
	t.Helper()

	m := database.NewManager(Config(t), zap.NewNop())
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Migrate(context.Background()))
	return m
}

// SeedProduct inserts a product and returns its id.
func SeedProduct(t *testing.T, m *database.Manager, name, price string, stock int) int64 {
	t.Helper()

	var id int64
	_, err := m.Query(context.Background(), &id,
		`INSERT INTO products (name, price, stock_quantity) VALUES (?, ?, ?) RETURNING id`,
		name, decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	return id
}

// SeedProductWithID inserts a product under a fixed id.
func SeedProductWithID(t *testing.T, m *database.Manager, id int64, name, price string, stock int) {
	t.Helper()

	var got int64
	_, err := m.Query(context.Background(), &got,
		`INSERT INTO products (id, name, price, stock_quantity) VALUES (?, ?, ?, ?) RETURNING id`,
		id, name, decimal.RequireFromString(price), stock)
	require.NoError(t, err)
}

func StockOf(t *testing.T, m *database.Manager, productID int64) int {
	t.Helper()

	var stock int
	n, err := m.Query(context.Background(), &stock,
		"SELECT stock_quantity FROM products WHERE id = ?", productID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	return stock
}

func SetPrice(t *testing.T, m *database.Manager, productID int64, price string) {
	t.Helper()

	var got int64
	_, err := m.Query(context.Background(), &got,
		"UPDATE products SET price = ? WHERE id = ? RETURNING id",
		decimal.RequireFromString(price), productID)
	require.NoError(t, err)
}

func CountRows(t *testing.T, m *database.Manager, table string) int64 {
	t.Helper()

	var n int64
	_, err := m.Query(context.Background(), &n, "SELECT COUNT(*) FROM "+table)
	require.NoError(t, err)
	return n
}
