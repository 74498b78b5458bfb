// Package store defines the shared key-value store that sibling windows use
// as their only communication channel, plus an in-process implementation.
package store

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

import (
	"context"
	"errors"
)

// Keys used by the window registry.
const (
	KeyWindows = "windows"
	KeyCount   = "count"
)

var (
	// ErrNotFound is returned by Read when the key has never been written
	// or has been deleted.
	ErrNotFound = errors.New("store: key not found")
	// ErrClosed is returned by operations on a closed store handle.
	ErrClosed = errors.New("store: closed")
)

// Store is a shared, persistent key-value store. Every Write is a full
// overwrite and the last writer wins; there are no transactions.
//
// Subscribers are notified of writes made through other handles to the same
// underlying store, never of writes made through their own handle. A deleted
// key is delivered as a nil value. Notifications for a single subscription
// are delivered sequentially.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Subscribe registers fn for changes to key and returns a function that
	// cancels the subscription.
	Subscribe(key string, fn func(value []byte)) (cancel func())
	Close() error
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
