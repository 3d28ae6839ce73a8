package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals that a key was not found or has expired.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the cache surface the guard service publishes status
// documents through. Implementations must treat a missing key as
// ErrCacheMiss rather than an empty value.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// NoopProvider satisfies Provider without storing anything; it is the
// default when caching is disabled.
type NoopProvider struct{}

// Get always misses.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set drops the value.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// SetNX reports success without storing.
func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

// Del does nothing.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close does nothing.
func (NoopProvider) Close() error { return nil }
