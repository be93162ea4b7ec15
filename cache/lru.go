package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is a size-bounded cache whose entries expire after a fixed TTL.
type LRU[S any] struct {
	lru *expirable.LRU[string, S]
}

// NewLRU creates an LRU holding at most size entries. A ttl <= 0 disables
// expiry.
func NewLRU[S any](size int, ttl time.Duration) *LRU[S] {
	if size <= 0 {
		size = 128
	}
	if ttl < 0 {
		ttl = 0
	}
	return &LRU[S]{lru: expirable.NewLRU[string, S](size, nil, ttl)}
}

func (c *LRU[S]) Set(ctx context.Context, key string, val S) error {
	c.lru.Add(key, val)
	return nil
}

func (c *LRU[S]) Get(ctx context.Context, key string) (S, bool, error) {
	val, ok := c.lru.Get(key)
	return val, ok, nil
}

func (c *LRU[S]) Del(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *LRU[S]) Exists(ctx context.Context, key string) (bool, error) {
	return c.lru.Contains(key), nil
}

func (c *LRU[S]) Len() int {
	return c.lru.Len()
}

var _ Cache[string] = (*LRU[string])(nil)
