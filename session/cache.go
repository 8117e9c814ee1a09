package session

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the in-memory session cache.
const DefaultCacheSize = 100_000

// Cache maps tokens to their decoded session. Presence accelerates validation;
// absence only means the token must be decrypted again.
type Cache interface {
	Get(token string) (Data, bool)
	Put(token string, d Data)
	// Remove deletes the entry and reports whether it existed.
	Remove(token string) bool
	// Sweep deletes every entry whose ExpiresAt is before now and returns the count.
	Sweep(now time.Time) int
	Len() int
}

// MemoryCache is a bounded LRU cache. Every operation holds mu so that a Sweep
// observes and mutates a consistent snapshot.
type MemoryCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, Data]
}

// NewMemoryCache builds a cache holding at most size entries (DefaultCacheSize when size <= 0).
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, Data](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Get(token string) (Data, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.entries.Get(token)
	if !ok {
		return Data{}, false
	}
	return d.Clone(), true
}

func (c *MemoryCache) Put(token string, d Data) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(token, d.Clone())
}

func (c *MemoryCache) Remove(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Remove(token)
}

func (c *MemoryCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, token := range c.entries.Keys() {
		d, ok := c.entries.Peek(token)
		if ok && d.ExpiresAt.Before(now) {
			c.entries.Remove(token)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Len()
}
