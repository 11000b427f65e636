// Package cache stores serialized API responses for a short time.
package cache

import (
	"context"
	"time"
)

type Interface interface {
	// Get reports ok=false on a miss; err is reserved for backend failures.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Purge drops every response entry owned by this service.
	Purge(ctx context.Context) error
	Driver() string
}

// None never stores anything.
type None struct{}

func (None) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (None) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (None) Purge(context.Context) error { return nil }
func (None) Driver() string { return "none" }
