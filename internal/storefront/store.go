// Package storefront is the consumer-facing view of the cart synchronizer. It
// wires the catalog, cart and session together and restores the previous
// session at startup.
package storefront

import (
	"context"
	"fmt"
	"sync"

	"cartsync/internal/cart"
	"cartsync/internal/catalog"
	"cartsync/internal/core"
	"cartsync/internal/session"

	"github.com/shopspring/decimal"
)

// Store exposes the food list, cart, totals and session token to callers
type Store struct {
	gateway core.IGateway
	slot    core.ISessionStore
	logger  core.ILogger

	catalog *catalog.Cache
	cart    *cart.Cart
	session *session.Session

	bootOnce sync.Once
}

// New builds a store. Nothing is fetched until Bootstrap runs.
func New(gateway core.IGateway, slot core.ISessionStore, dispatcher core.Dispatcher, logger core.ILogger) *Store {
	sess := session.New()
	return &Store{
		gateway: gateway,
		slot:    slot,
		logger:  logger.WithField("component", "storefront"),
		catalog: catalog.NewCache(logger),
		cart:    cart.New(gateway, sess, dispatcher, logger),
		session: sess,
	}
}

// Bootstrap loads the catalog and then restores a persisted session,
// reloading the server cart when a token is found. Only the first call does
// anything.
func (s *Store) Bootstrap(ctx context.Context) {
	s.bootOnce.Do(func() {
		s.catalog.Load(ctx, s.gateway)

		token, ok, err := s.slot.Get(ctx)
		if err != nil {
			s.logger.Error("Error reading session store", "error", err)
			return
		}
		if !ok {
			s.logger.Info("No saved session, continuing unauthenticated")
			return
		}

		s.session.SetToken(token)
		s.logger.Info("Session restored", "token", token)
		s.cart.Reload(ctx, token)
	})
}

// FoodList returns the cached catalog
func (s *Store) FoodList() []core.CatalogItem {
	return s.catalog.Items()
}

// CartItems returns a copy of the cart mapping
func (s *Store) CartItems() map[string]int {
	return s.cart.Items()
}

// Token returns the active session token
func (s *Store) Token() (core.Token, bool) {
	return s.session.Token()
}

// URL returns the order service root URL
func (s *Store) URL() string {
	return s.gateway.BaseURL()
}

// AddToCart adds one unit of itemID
func (s *Store) AddToCart(ctx context.Context, itemID string) {
	s.cart.AddItem(ctx, itemID)
}

// RemoveFromCart removes one unit of itemID
func (s *Store) RemoveFromCart(ctx context.Context, itemID string) {
	s.cart.RemoveItem(ctx, itemID)
}

// GetTotalCartAmount prices the cart against the catalog
func (s *Store) GetTotalCartAmount() decimal.Decimal {
	return s.cart.Total(s.catalog)
}

// SetToken activates token without reloading the cart
func (s *Store) SetToken(token core.Token) {
	s.session.SetToken(token)
}

// Login persists token, activates it and pulls the server cart
func (s *Store) Login(ctx context.Context, token core.Token) error {
	if token == "" {
		return fmt.Errorf("login: empty token")
	}
	if err := s.slot.Set(ctx, token); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.session.SetToken(token)
	s.cart.Reload(ctx, token)
	return nil
}

// Logout clears the persisted slot and deactivates the session. The local
// cart is left as it is.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.slot.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.session.SetToken("")
	return nil
}

// Snapshot returns the cart with its current total
func (s *Store) Snapshot() core.CartSnapshot {
	items := s.cart.Items()
	return core.CartSnapshot{
		Items: items,
		Total: cart.Total(items, s.catalog),
	}
}

// Subscribe delivers a snapshot after every cart change
func (s *Store) Subscribe(fn func(core.CartSnapshot)) {
	s.cart.Subscribe(func(items map[string]int) {
		fn(core.CartSnapshot{
			Items: items,
			Total: cart.Total(items, s.catalog),
		})
	})
}

// CatalogLoaded reports whether the catalog fetch succeeded
func (s *Store) CatalogLoaded() bool {
	return s.catalog.Loaded()
}
