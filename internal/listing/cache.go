package listing

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/erazemk/lombard/internal/model"
)

// Cache keeps the last successfully fetched set per session, so a page can
// keep showing it when a later fetch fails. Safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[string, []model.PawnItem]
}

// NewCache returns a cache holding up to size sets for ttl each.
func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, []model.PawnItem](size, nil, ttl)}
}

// Get returns the set stored under key.
func (c *Cache) Get(key string) ([]model.PawnItem, bool) {
	return c.lru.Get(key)
}

// Put stores items under key.
func (c *Cache) Put(key string, items []model.PawnItem) {
	c.lru.Add(key, items)
}

// Forget drops the set stored under key.
func (c *Cache) Forget(key string) {
	c.lru.Remove(key)
}

// Load seeds e from the cache and then fetches from src. A successful fetch
// refreshes the cache; a failed one leaves e showing the cached set.
func (c *Cache) Load(ctx context.Context, key string, e *Engine, src Source) error {
	if items, ok := c.Get(key); ok {
		e.Replace(items)
	}
	if err := e.Fetch(ctx, src); err != nil {
		return err
	}
	c.Put(key, e.Items())
	return nil
}
