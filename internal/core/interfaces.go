// Package core defines the core interfaces for the cart synchronizer
package core

import (
	"context"
)

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// CatalogSource lists the purchasable items offered by the order service
type CatalogSource interface {
	ListFoods(ctx context.Context) ([]CatalogItem, error)
}

// CartGateway is the remote side of the cart. Every call is authenticated
// with the session token and attempted once.
type CartGateway interface {
	AddToCart(ctx context.Context, token Token, itemID string) error
	RemoveFromCart(ctx context.Context, token Token, itemID string) error
	GetCart(ctx context.Context, token Token) (map[string]int, error)
}

// IGateway is the full order service surface
type IGateway interface {
	CatalogSource
	CartGateway
	BaseURL() string
}

// ISessionStore is a durable slot holding at most one session token.
// Get reports ok=false when no token is stored.
type ISessionStore interface {
	Get(ctx context.Context) (Token, bool, error)
	Set(ctx context.Context, token Token) error
	Clear(ctx context.Context) error
	Close() error
}

// TokenSource exposes the currently active session token, if any
type TokenSource interface {
	Token() (Token, bool)
}

// Dispatcher runs detached tasks. Submit never waits for the task.
type Dispatcher interface {
	Submit(task func()) error
}
