// Package cache provides the process-wide cache of rarely changing scalars
// (resource field sets, compiled contracts, collection totals).
package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Scalars is a bounded, expiring cache with single-flight lookups.
//
// Thread-safety: safe for concurrent use. Concurrent Get calls for the same
// missing key share one lookup.
type Scalars[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// New creates a cache holding at most size entries, each expiring after
// ttl. A ttl of zero disables expiry.
func New[V any](size int, ttl time.Duration) *Scalars[V] {
	if size <= 0 {
		size = 128
	}
	return &Scalars[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

// Get returns the cached value for key, running lookup to fill it on a
// miss. Lookup errors are returned and not cached.
func (s *Scalars[V]) Get(key string, lookup func() (V, error)) (V, error) {
	if v, ok := s.lru.Get(key); ok {
		return v, nil
	}

	res, err, _ := s.group.Do(key, func() (any, error) {
		if v, ok := s.lru.Get(key); ok {
			return v, nil
		}
		v, err := lookup()
		if err != nil {
			return v, err
		}
		s.lru.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, ok := res.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cache: unexpected value type %T for key %q", res, key)
	}
	return v, nil
}

// Peek returns the cached value without running a lookup.
func (s *Scalars[V]) Peek(key string) (V, bool) {
	return s.lru.Get(key)
}

// Set stores value under key.
func (s *Scalars[V]) Set(key string, value V) {
	s.lru.Add(key, value)
}

// Expire removes key so the next Get runs a fresh lookup.
func (s *Scalars[V]) Expire(key string) {
	s.lru.Remove(key)
}

// Len returns the number of live entries.
func (s *Scalars[V]) Len() int {
	return s.lru.Len()
}
