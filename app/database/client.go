package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrClientReleased = errors.New("transactional client already released")
	ErrTxInProgress   = errors.New("transaction already in progress")
	ErrNoTransaction  = errors.New("no transaction in progress")
)

// Client is one pooled connection checked out for the duration of a
// transaction. It is owned by a single caller; Release must be deferred right
// after AcquireTransaction and returns the connection exactly once, rolling
// back a transaction that was left open.
type Client struct {
	conn    *sql.Conn
	session *gorm.DB
	tx      *gorm.DB
	log     *zap.Logger

	mu       sync.Mutex
	released bool
}

// AcquireTransaction checks a connection out of the pool. The caller must
// Begin explicitly.
func (m *Manager) AcquireTransaction(ctx context.Context) (*Client, error) {
	m.mu.RLock()
	db, sqlDB := m.db, m.sqlDB
	m.mu.RUnlock()

	if db == nil {
		return nil, ErrNotConnected
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) || m.closedSince(sqlDB) {
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		return nil, fmt.Errorf("checkout connection: %w", err)
	}

	session := db.Session(&gorm.Session{NewDB: true, Context: ctx})
	session.Statement.ConnPool = conn

	return &Client{
		conn:    conn,
		session: session,
		log:     m.log,
	}, nil
}

// closedSince reports whether the pool was closed or replaced after sqlDB was
// read. Close holds the write lock until the handles are cleared.
func (m *Manager) closedSince(sqlDB *sql.DB) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB != sqlDB
}

// Begin opens a transaction on the checked out connection and returns the
// gorm handle bound to it.
func (c *Client) Begin(opts *sql.TxOptions) (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, ErrClientReleased
	}
	if c.tx != nil {
		return nil, ErrTxInProgress
	}

	tx := c.session.Begin(opts)
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	c.tx = tx
	return tx, nil
}

func (c *Client) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		return ErrNoTransaction
	}
	err := c.tx.Commit().Error
	c.tx = nil
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (c *Client) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rollbackLocked()
}

func (c *Client) rollbackLocked() error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	err := c.tx.Rollback().Error
	c.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// Release returns the connection to the pool. Calls after the first are
// no-ops.
func (c *Client) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	if c.tx != nil {
		if err := c.rollbackLocked(); err != nil {
			c.log.Error("rollback on release failed", zap.Error(err))
		}
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		c.log.Error("release connection failed", zap.Error(err))
	}
}

// IsSerializationFailure reports whether err is a Postgres serialization
// failure or deadlock, which a caller may retry as a whole transaction.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}
