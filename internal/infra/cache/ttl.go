package cache

import (
	"sync"
	"time"

	"chaletbook/internal/app/dto"
	"chaletbook/internal/domain/shared/clock"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a bounded in-process cache. Entries are served until their TTL
// elapses on the injected clock; when full, expired entries are dropped
// first and then the one closest to expiry.
type TTL[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	limit   int
	clock   clock.Clock
	entries map[string]entry[V]
}

func NewTTL[V any](ttl time.Duration, limit int, clk clock.Clock) *TTL[V] {
	if clk == nil {
		clk = clock.System{}
	}
	if limit <= 0 {
		limit = 1024
	}
	return &TTL[V]{ttl: ttl, limit: limit, clock: clk, entries: make(map[string]entry[V])}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[V]) Put(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.limit {
		c.evict(now)
	}
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// Purge drops every entry.
func (c *TTL[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[V]) evict(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.limit && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// CalendarCache is the advisory cache behind the calendar query.
type CalendarCache = TTL[dto.Calendar]

func NewCalendarCache(ttl time.Duration, clk clock.Clock) *CalendarCache {
	return NewTTL[dto.Calendar](ttl, 512, clk)
}
