// Package config loads service settings from the environment, reading a .env
// file first when one is present.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mytheresa/go-storefront/app/database"
	"github.com/mytheresa/go-storefront/app/logging"
	"github.com/spf13/cast"
)

type Config struct {
	Env        string
	Port       int
	CORSOrigin string
	Database   database.Config
	Logger     logging.Config
}

// Load reads the given .env files (defaulting to ".env"); missing files are
// ignored and variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Env:        getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),
		Database:   database.DefaultConfig(),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 3000); err != nil {
		return nil, err
	}

	db := &cfg.Database
	db.Host = getEnv("DATABASE_HOST", db.Host)
	db.Name = getEnv("DATABASE_NAME", db.Name)
	db.User = getEnv("DATABASE_USER", db.User)
	db.Password = getEnv("DATABASE_PASSWORD", db.Password)
	db.SSLMode = getEnv("DATABASE_SSLMODE", db.SSLMode)

	if db.Port, err = getInt("DATABASE_PORT", db.Port); err != nil {
		return nil, err
	}
	if db.MaxOpenConns, err = getInt("DATABASE_MAX_CONNS", db.MaxOpenConns); err != nil {
		return nil, err
	}
	if db.IdleTimeout, err = getDuration("DATABASE_IDLE_TIMEOUT", db.IdleTimeout); err != nil {
		return nil, err
	}
	if db.ConnectTimeout, err = getDuration("DATABASE_CONNECT_TIMEOUT", db.ConnectTimeout); err != nil {
		return nil, err
	}
	if db.Retry.MaxAttempts, err = getInt("DATABASE_MAX_RETRIES", db.Retry.MaxAttempts); err != nil {
		return nil, err
	}
	if db.Retry.BaseDelay, err = getDuration("DATABASE_RETRY_BASE_DELAY", db.Retry.BaseDelay); err != nil {
		return nil, err
	}

	mode := "development"
	if cfg.Env == "production" {
		mode = "production"
	}
	cfg.Logger = logging.Config{
		Mode:     getEnv("LOG_MODE", mode),
		Filename: getEnv("LOG_FILE", ""),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := cast.ToDurationE(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
