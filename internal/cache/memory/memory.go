// Package memory is the in-process response cache driver.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultSize = 1024

// Store is a bounded LRU whose entries expire after a fixed TTL. The TTL passed
// to Set is ignored in favour of the one given to New.
type Store struct {
	lru *expirable.LRU[string, []byte]
}

func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = defaultSize
	}
	return &Store{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	s.lru.Add(key, val)
	return nil
}

func (s *Store) Purge(context.Context) error {
	s.lru.Purge()
	return nil
}

func (s *Store) Len() int { return s.lru.Len() }

func (s *Store) Driver() string { return "memory" }
