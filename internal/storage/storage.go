// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no record exists under the key.
var ErrNotFound = errors.New("record not found")

// Store persists opaque records under well-known keys. Write replaces the
// whole record atomically.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Close() error
}
