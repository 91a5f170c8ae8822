// Package api exposes the storefront over JSON for a local UI layer
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"cartsync/internal/core"
	"cartsync/internal/gateway"
	"cartsync/pkg/cli"
	httpclient "cartsync/pkg/http"
	"cartsync/pkg/liveserver"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 16

// Storefront is the consumer contract the handlers depend on
type Storefront interface {
	FoodList() []core.CatalogItem
	CartItems() map[string]int
	Token() (core.Token, bool)
	URL() string
	AddToCart(ctx context.Context, itemID string)
	RemoveFromCart(ctx context.Context, itemID string)
	GetTotalCartAmount() decimal.Decimal
	SetToken(token core.Token)
}

// StateResponse is the full view served by GET /api/state
type StateResponse struct {
	FoodList      []core.CatalogItem `json:"food_list"`
	CartItems     map[string]int     `json:"cart_items"`
	Total         decimal.Decimal    `json:"total"`
	Authenticated bool               `json:"authenticated"`
	URL           string             `json:"url"`
}

// CartResponse is returned after a cart mutation
type CartResponse struct {
	CartItems map[string]int  `json:"cart_items"`
	Total     decimal.Decimal `json:"total"`
}

type itemRequest struct {
	ItemID string `json:"itemId"`
}

type sessionRequest struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the storefront routes
type Handler struct {
	store  Storefront
	feed   *liveserver.Server
	logger core.ILogger
}

// NewHandler creates the handlers. feed may be nil when no live feed runs.
func NewHandler(store Storefront, feed *liveserver.Server, logger core.ILogger) *Handler {
	return &Handler{
		store:  store,
		feed:   feed,
		logger: logger.WithField("component", "api"),
	}
}

// Register mounts the routes on srv. Mutations are rate limited.
func (h *Handler) Register(srv *liveserver.Server) {
	srv.Handle("GET /api/state", http.HandlerFunc(h.handleState))
	srv.Handle("POST /api/cart/add", srv.RateLimited(http.HandlerFunc(h.handleAdd)))
	srv.Handle("POST /api/cart/remove", srv.RateLimited(http.HandlerFunc(h.handleRemove)))
	srv.Handle("POST /api/session", srv.RateLimited(http.HandlerFunc(h.handleSession)))
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	_, authenticated := h.store.Token()
	writeJSON(w, http.StatusOK, StateResponse{
		FoodList:      h.store.FoodList(),
		CartItems:     h.store.CartItems(),
		Total:         h.store.GetTotalCartAmount(),
		Authenticated: authenticated,
		URL:           h.store.URL(),
	})
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.store.AddToCart)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.store.RemoveFromCart)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, itemID string)) {
	var req itemRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := cli.ValidateItemID(req.ItemID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// The caller's correlation id follows the change to the order service
	ctx := gateway.WithRequestID(r.Context(), r.Header.Get(httpclient.RequestIDHeader))
	apply(ctx, req.ItemID)

	writeJSON(w, http.StatusOK, CartResponse{
		CartItems: h.store.CartItems(),
		Total:     h.store.GetTotalCartAmount(),
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	// An empty token logs the session out
	if req.Token != "" {
		if err := cli.ValidateToken(req.Token); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}

	h.store.SetToken(core.Token(req.Token))
	_, active := h.store.Token()
	h.logger.Info("Session token updated", "active", active)
	if h.feed != nil {
		h.feed.Broadcast(liveserver.NewSessionMessage(active))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": active})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
