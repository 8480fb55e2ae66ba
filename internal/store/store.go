// Package store provides the backing stores for field values and the
// resolution cache.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a slot holds no value.
var ErrNotFound = errors.New("value not found")

// Store is a key/value slot store. Values are opaque bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
	Close() error
}
