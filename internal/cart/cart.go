// Package cart is the cart state machine: optimistic local mutations with
// best-effort, fire-and-forget synchronization to the order service.
package cart

import (
	"context"
	"errors"
	"sync"

	"cartsync/internal/core"
	"cartsync/pkg/apperrors"
	"cartsync/pkg/telemetry"
)

// Cart owns the itemID->quantity mapping and is its only writer. No stored
// quantity is ever <= 0.
type Cart struct {
	mu    sync.RWMutex
	items map[string]int

	gateway    core.CartGateway
	session    core.TokenSource
	dispatcher core.Dispatcher
	logger     core.ILogger
	metrics    *telemetry.MetricsHolder

	// version increases with every change to items and is taken under mu.
	// Delivery is serialized by obsMu and skips snapshots older than the
	// last one delivered, so observers never move backwards.
	version   uint64
	obsMu     sync.Mutex
	delivered uint64
	observers []func(items map[string]int)
}

// New creates an empty cart. Remote notifications are submitted to
// dispatcher only while session reports an active token.
func New(gateway core.CartGateway, session core.TokenSource, dispatcher core.Dispatcher, logger core.ILogger) *Cart {
	return &Cart{
		items:      make(map[string]int),
		gateway:    gateway,
		session:    session,
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "cart"),
		metrics:    telemetry.GetGlobalMetrics(),
	}
}

// AddItem increments itemID by one. The local change is visible when AddItem
// returns; the remote "add" is dispatched and never awaited.
func (c *Cart) AddItem(ctx context.Context, itemID string) {
	c.mu.Lock()
	c.items[itemID]++
	version, snapshot := c.bumpLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)

	c.sync(ctx, telemetry.OpAdd, itemID, c.gateway.AddToCart)
}

// RemoveItem decrements itemID by one, deleting the line when it reaches
// zero. Removing an absent item changes nothing locally, but the remote
// "remove" is still dispatched when a session is active.
func (c *Cart) RemoveItem(ctx context.Context, itemID string) {
	c.mu.Lock()
	if qty := c.items[itemID] - 1; qty <= 0 {
		delete(c.items, itemID)
	} else {
		c.items[itemID] = qty
	}
	version, snapshot := c.bumpLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)

	c.sync(ctx, telemetry.OpRemove, itemID, c.gateway.RemoveFromCart)
}

// Reload fetches the server cart and replaces the local mapping wholesale.
// Lines with quantity <= 0 are dropped. On failure local state is kept and
// the error is only logged.
func (c *Cart) Reload(ctx context.Context, token core.Token) {
	remote, err := c.gateway.GetCart(ctx, token)
	c.metrics.RecordReload(ctx, err == nil)
	if err != nil {
		c.logger.Error("Error loading cart data", "error", err)
		return
	}

	next := make(map[string]int, len(remote))
	for id, qty := range remote {
		if qty > 0 {
			next[id] = qty
		}
	}

	c.mu.Lock()
	c.items = next
	version, snapshot := c.bumpLocked()
	c.mu.Unlock()

	c.logger.Info("Cart reloaded from order service", "lines", len(snapshot))
	c.notify(version, snapshot)
}

// Items returns a copy of the current mapping
func (c *Cart) Items() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLocked()
}

// Quantity returns the stored quantity for itemID, 0 when absent
func (c *Cart) Quantity(itemID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[itemID]
}

// Len returns the number of distinct lines
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Subscribe registers fn to receive a copy of the mapping after changes.
// Snapshots arrive in change order; one superseded while waiting for an
// earlier delivery is skipped. fn runs on a mutating goroutine and must not
// block or mutate the cart.
func (c *Cart) Subscribe(fn func(items map[string]int)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Cart) notify(version uint64, items map[string]int) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	if version <= c.delivered {
		return
	}
	c.delivered = version
	c.metrics.SetCartLines(len(items))
	for _, fn := range c.observers {
		fn(items)
	}
}

func (c *Cart) bumpLocked() (uint64, map[string]int) {
	c.version++
	return c.version, c.copyLocked()
}

func (c *Cart) copyLocked() map[string]int {
	out := make(map[string]int, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}

type remoteCall func(ctx context.Context, token core.Token, itemID string) error

// sync dispatches call as a detached task when a session is active. The task
// outlives the caller's context cancellation; its result is only logged.
func (c *Cart) sync(ctx context.Context, op, itemID string, call remoteCall) {
	token, ok := c.session.Token()
	if !ok {
		return
	}

	detached := context.WithoutCancel(ctx)
	log := c.logger.WithFields(map[string]interface{}{"op": op, "item_id": itemID})

	err := c.dispatcher.Submit(func() {
		err := call(detached, token, itemID)
		c.metrics.RecordSync(detached, op, err != nil)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnauthorized) {
				log.Warn("Order service rejected session token", "error", err)
				return
			}
			log.Error("Error syncing cart", "error", err)
			return
		}
		log.Debug("Cart change synced")
	})
	if err != nil {
		c.metrics.RecordDropped(ctx, op)
		log.Warn("Dropping cart sync", "error", err)
	}
}
