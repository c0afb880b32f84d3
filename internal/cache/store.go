package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotInitialised is returned when a nil store is used.
var ErrNotInitialised = errors.New("cache: store not initialised")

// Store is the shared counter store behind rate limiting.
//
// IncrementWithTTL opens a window of the given length on the first increment
// of a key and never extends it; the returned duration is the time left in
// the current window.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Ping(ctx context.Context) error
}

var (
	_ Store = (*DatabaseStore)(nil)
	_ Store = (*RedisStore)(nil)
)
