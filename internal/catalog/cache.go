// Package catalog caches the purchasable item list fetched from the order service
package catalog

import (
	"context"
	"sync"

	"cartsync/internal/core"
	"cartsync/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// Cache holds the last-fetched catalog. It is written once and read-only
// afterwards; lookups against an unpopulated cache simply miss.
type Cache struct {
	mu       sync.RWMutex
	items    []core.CatalogItem
	byID     map[string]int
	loaded   bool
	attempts int
	logger   core.ILogger
}

// NewCache creates an empty, unloaded cache
func NewCache(logger core.ILogger) *Cache {
	return &Cache{
		byID:   make(map[string]int),
		logger: logger.WithField("component", "catalog_cache"),
	}
}

// Load fetches the full item list once. A failure is logged and leaves the
// cache empty; later calls do nothing either way.
func (c *Cache) Load(ctx context.Context, src core.CatalogSource) {
	c.mu.Lock()
	c.attempts++
	first := c.attempts == 1
	c.mu.Unlock()
	if !first {
		c.logger.Debug("Catalog already fetched, skipping")
		return
	}

	items, err := src.ListFoods(ctx)
	if err != nil {
		c.logger.Error("Error fetching food list", "error", err)
		return
	}

	c.populate(items)
	c.logger.Info("Catalog loaded", "items", len(items))
}

func (c *Cache) populate(items []core.CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make([]core.CatalogItem, 0, len(items))
	c.byID = make(map[string]int, len(items))
	for _, it := range items {
		if it.ID == "" {
			c.logger.Warn("Skipping catalog item without id", "name", it.Name)
			continue
		}
		if _, dup := c.byID[it.ID]; dup {
			// first occurrence wins, matching a linear find
			continue
		}
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	c.loaded = true
	telemetry.GetGlobalMetrics().SetCatalogItems(len(c.items))
}

// Items returns a copy of the catalog in service order
func (c *Cache) Items() []core.CatalogItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.CatalogItem, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup returns the item with the given id
func (c *Cache) Lookup(id string) (core.CatalogItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byID[id]
	if !ok {
		return core.CatalogItem{}, false
	}
	return c.items[idx], true
}

// Price implements cart.PriceLookup
func (c *Cache) Price(id string) (decimal.Decimal, bool) {
	it, ok := c.Lookup(id)
	if !ok {
		return decimal.Zero, false
	}
	return it.Price, true
}

// Loaded reports whether a fetch has succeeded
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Len returns the number of cached items
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
