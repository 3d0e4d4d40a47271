// Package cache is the key-value capability behind the dashboard payload
// cache. It is opportunistic: callers treat every failure as a miss, so a
// down Redis never blocks a request.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get returns the stored value, or ok=false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores a value; ttl<=0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}
