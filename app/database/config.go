package database

import (
	"fmt"
	"time"
)

const (
	DefaultHost           = "localhost"
	DefaultPort           = 5432
	DefaultName           = "ecommerce"
	DefaultUser           = "postgres"
	DefaultSSLMode        = "disable"
	DefaultMaxOpenConns   = 20
	DefaultIdleTimeout    = 30 * time.Second
	DefaultConnectTimeout = 2 * time.Second
	DefaultMaxAttempts     = 5
	DefaultBaseDelay      = time.Second
)

// Config holds the connection and pool settings for the Postgres store.
type Config struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxOpenConns   int           // upper bound on connections in flight
	IdleTimeout    time.Duration // idle connections are evicted after this
	ConnectTimeout time.Duration // per-attempt connect budget

	Retry RetryPolicy
}

// RetryPolicy is the backoff budget used while establishing initial connectivity.
// At most MaxAttempts probes are made; failed attempt k (k >= 1) is followed by
// a wait of BaseDelay * 2^(k-1) unless it was the last one.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		Name:           DefaultName,
		User:           DefaultUser,
		Password:       DefaultUser,
		SSLMode:        DefaultSSLMode,
		MaxOpenConns:   DefaultMaxOpenConns,
		IdleTimeout:    DefaultIdleTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		Retry: RetryPolicy{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:  DefaultBaseDelay,
		},
	}
}

// Delay returns the backoff after the given failed attempt, counting from 1.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

// DSN renders the lib/pq key/value connection string.
func (c Config) DSN() string {
	timeout := int(c.ConnectTimeout / time.Second)
	if timeout < 1 {
		timeout = 1
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
		timeout)
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = DefaultBaseDelay
	}
	if c.SSLMode == "" {
		c.SSLMode = DefaultSSLMode
	}
	return c
}
