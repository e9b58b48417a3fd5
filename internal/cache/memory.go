// Package cache provides pricing.ResultCache backends.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

var _ pricing.ResultCache = (*Memory)(nil)

// entry wraps a cached result with its expiration time.
type entry struct {
	result    pricing.Result
	expiresAt time.Time
}

// Memory is an in-process ResultCache. Writes are last-write-wins without
// locking; expired entries are dropped on read and by a periodic sweep.
type Memory struct {
	entries sync.Map // string -> *entry
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory returns an empty Memory cache. Call StartCleanup to sweep expired
// entries in the background.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Get returns a copy of the cached result.
func (m *Memory) Get(_ context.Context, key pricing.CacheKey) (*pricing.Result, bool, error) {
	k := key.String()
	if v, ok := m.entries.Load(k); ok {
		e := v.(*entry)
		if m.now().Before(e.expiresAt) {
			m.hits.Add(1)
			r := e.result
			return &r, true, nil
		}
		m.entries.CompareAndDelete(k, v)
	}
	m.misses.Add(1)
	return nil, false, nil
}

// Put stores result until ttl elapses.
func (m *Memory) Put(_ context.Context, key pricing.CacheKey, result pricing.Result, ttl time.Duration) error {
	m.entries.Store(key.String(), &entry{
		result:    result,
		expiresAt: m.now().Add(ttl),
	})
	return nil
}

// Stats returns the number of hits and misses served so far.
func (m *Memory) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// sweep removes entries that expired before now.
func (m *Memory) sweep(now time.Time) {
	m.entries.Range(func(k, v any) bool {
		if !now.Before(v.(*entry).expiresAt) {
			m.entries.CompareAndDelete(k, v)
		}
		return true
	})
}

// StartCleanup launches a goroutine that sweeps expired entries every
// interval. It stops when ctx is cancelled.
func (m *Memory) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.sweep(now)
			}
		}
	}()
}
