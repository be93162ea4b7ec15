package cache

import (
	"context"
	"errors"
)

var ErrEmptyKey = errors.New("empty cache key")

// Namespaced prefixes every key with a namespace so several owners can share
// one backing cache.
type Namespaced[S any] struct {
	core      Cache[S]
	namespace string
}

func NewNamespaced[S any](core Cache[S], namespace string) Namespaced[S] {
	return Namespaced[S]{core: core, namespace: namespace}
}

func (c Namespaced[S]) key(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if c.namespace == "" {
		return key, nil
	}
	return c.namespace + ":" + key, nil
}

func (c Namespaced[S]) Set(ctx context.Context, key string, val S) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	return c.core.Set(ctx, k, val)
}

func (c Namespaced[S]) Get(ctx context.Context, key string) (S, bool, error) {
	k, err := c.key(key)
	if err != nil {
		var zero S
		return zero, false, err
	}
	return c.core.Get(ctx, k)
}

func (c Namespaced[S]) Del(ctx context.Context, key string) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	return c.core.Del(ctx, k)
}

func (c Namespaced[S]) Exists(ctx context.Context, key string) (bool, error) {
	k, err := c.key(key)
	if err != nil {
		return false, err
	}
	return c.core.Exists(ctx, k)
}

var _ Cache[string] = Namespaced[string]{}
