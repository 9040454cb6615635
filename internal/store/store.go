// Package store abstracts the shared counter/stream store backing the
// rate limiter and the alert service. The production implementation is
// Redis; an in-memory implementation serves tests.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("store: key not found")

// Entry is one stream record, newest-first when read via RevRange.
type Entry struct {
	ID     string
	Fields map[string]string
}

// Store is the minimal surface the limiter and alert service need.
// Incr must be atomic relative to concurrent callers sharing a key.
type Store interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Append adds an entry to a stream, trimming it to roughly maxLen
	// entries (oldest dropped first). maxLen <= 0 means unbounded.
	Append(ctx context.Context, stream string, fields map[string]string, maxLen int64) (string, error)
	// RevRange reads up to count entries, newest first.
	RevRange(ctx context.Context, stream string, count int64) ([]Entry, error)
	// ExpireStream refreshes the retention TTL on a stream.
	ExpireStream(ctx context.Context, stream string, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}
