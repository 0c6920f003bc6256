package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a series key is unknown or has expired.
var ErrNotFound = errors.New("series not found in session index")

// Store is the backing key-value store for the session index. Entries are
// evicted after their TTL; there is no unbounded growth.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const keyPrefix = "series:"

func storeKey(seriesID string) string {
	return keyPrefix + seriesID
}
