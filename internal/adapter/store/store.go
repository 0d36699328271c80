// Package store is the secure key-value storage boundary: get, set and delete of opaque
// string values.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/webitel/im-realtime-client/config"
)

var ErrNotFound = errors.New("store: key not found")

// KV is the storage contract. Get returns ErrNotFound for a missing key; Delete of a
// missing key is not an error.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New builds the backend selected by cfg.Driver.
func New(cfg config.StoreConfig, logger *slog.Logger) (KV, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg.RedisAddr, logger)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
