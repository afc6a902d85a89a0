package quote

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type cacheEntry struct {
	quote   Quote
	expires time.Time
}

// Cache holds recent quotes for a short TTL. It is created by the caller and
// injected into the Engine so each session (and each test) owns its own.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates a quote cache. now may be nil to use the wall clock.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, entries: make(map[string]cacheEntry)}
}

func cacheKey(tokenIn, tokenOut common.Address, amountIn *big.Int) string {
	return fmt.Sprintf("%s>%s:%s", tokenIn.Hex(), tokenOut.Hex(), amountIn.String())
}

// Get returns a copy of a live entry.
func (c *Cache) Get(key string) (Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Quote{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return Quote{}, false
	}
	return e.quote.clone(), true
}

// Set stores a copy of q.
func (c *Cache) Set(key string, q Quote) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{quote: q.clone(), expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
