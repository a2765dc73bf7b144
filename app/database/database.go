// Package database owns the Postgres connection pool: startup connectivity
// with bounded backoff, pooled queries, health probes and scoped
// transactional clients.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxLoggedQuery = 100

var (
	// ErrConnectivityExhausted is returned by Connect when the retry budget is spent.
	// Startup must treat it as fatal.
	ErrConnectivityExhausted = errors.New("cannot establish database connectivity")

	// ErrNotConnected is returned when the pool is used before Connect or after Close.
	ErrNotConnected = errors.New("database not connected")
)

type Manager struct {
	cfg   Config
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	sqlDB *sql.DB
	db    *gorm.DB
}

func NewManager(cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:   cfg.withDefaults(),
		log:   log.Named("database"),
		sleep: sleepContext,
	}
}

// Connect builds the pool and probes it, retrying with exponential backoff.
// It returns immediately when already connected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return nil
	}

	sqlDB, err := sql.Open("postgres", m.cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(m.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(m.cfg.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(m.cfg.IdleTimeout)

	if err := m.probeWithRetry(ctx, func(ctx context.Context) error {
		return m.probe(ctx, sqlDB)
	}); err != nil {
		_ = sqlDB.Close()
		return err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to initialise gorm: %w", err)
	}

	m.sqlDB = sqlDB
	m.db = db
	m.log.Info("database connection established",
		zap.String("host", m.cfg.Host),
		zap.String("database", m.cfg.Name),
		zap.Int("max_conns", m.cfg.MaxOpenConns))
	return nil
}

// probe checks out one connection, runs a trivial statement and releases it.
// Each attempt is bounded by the connect timeout.
func (m *Manager) probe(ctx context.Context, sqlDB *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var now time.Time
	return conn.QueryRowContext(ctx, "SELECT NOW()").Scan(&now)
}

// Query runs a statement on the pool and scans the result into dest.
// It returns the number of rows scanned.
func (m *Manager) Query(ctx context.Context, dest any, query string, args ...any) (int64, error) {
	db, err := m.DB()
	if err != nil {
		return 0, err
	}

	res := db.WithContext(ctx).Raw(query, args...).Scan(dest)
	if res.Error != nil {
		m.log.Error("database query error",
			zap.String("query", truncate(query, maxLoggedQuery)),
			zap.Error(res.Error))
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// HealthCheck reports whether a connection can be checked out and used.
// It never returns an error; failures are logged and reported as unhealthy.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()

	if sqlDB == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		m.log.Error("database health check failed", zap.Error(err))
		return false
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT 1"); err != nil {
		m.log.Error("database health check failed", zap.Error(err))
		return false
	}
	return true
}

// DB returns the gorm handle bound to the pool.
func (m *Manager) DB() (*gorm.DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.db == nil {
		return nil, ErrNotConnected
	}
	return m.db, nil
}

// Close drains the pool. Later calls fail with ErrNotConnected until Connect
// succeeds again.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sqlDB == nil {
		return nil
	}

	err := m.sqlDB.Close()
	m.sqlDB = nil
	m.db = nil
	m.log.Info("database connection closed")
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
