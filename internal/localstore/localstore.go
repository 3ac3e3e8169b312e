// Package localstore defines the on-device key-value layer that backs the
// sale ledger. Values are opaque strings; callers serialize them as JSON.
package localstore

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("local store closed")

type KV interface {
	// Get returns ok=false when key has never been set or was removed.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
