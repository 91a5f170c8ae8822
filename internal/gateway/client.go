// Package gateway talks to the remote order service: catalog listing and the
// authenticated cart endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cartsync/internal/config"
	"cartsync/internal/core"
	"cartsync/pkg/apperrors"
	httpclient "cartsync/pkg/http"
)

// Order service endpoints
const (
	PathFoodList   = "/api/food/list"
	PathCartAdd    = "/api/cart/add"
	PathCartRemove = "/api/cart/remove"
	PathCartGet    = "/api/cart/get"
)

type requestIDKey struct{}

// WithRequestID attaches a correlation id that every call made with ctx
// forwards as X-Request-ID. Detached contexts keep it.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation id carried by ctx
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

func requestOptions(ctx context.Context, token *core.Token) []httpclient.RequestOption {
	var opts []httpclient.RequestOption
	if token != nil {
		opts = append(opts, httpclient.WithBearer(token.Value()))
	}
	if id, ok := RequestID(ctx); ok {
		opts = append(opts, httpclient.WithHeader(httpclient.RequestIDHeader, id))
	}
	return opts
}

// Client implements core.IGateway over HTTP
type Client struct {
	http   *httpclient.Client
	logger core.ILogger
}

var _ core.IGateway = (*Client)(nil)

// NewClient builds a gateway client from configuration
func NewClient(cfg config.GatewayConfig, logger core.ILogger) *Client {
	return NewClientWithHTTP(httpclient.NewClient(httpclient.Config{
		BaseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
		BreakerFailures: uint(cfg.BreakerFailureThreshold),
		BreakerWindow:   uint(cfg.BreakerFailureWindow),
		BreakerDelay:    time.Duration(cfg.BreakerDelaySeconds) * time.Second,
	}, nil), logger)
}

// NewClientWithHTTP wraps an existing HTTP client
func NewClientWithHTTP(c *httpclient.Client, logger core.ILogger) *Client {
	return &Client{
		http:   c,
		logger: logger.WithField("component", "gateway"),
	}
}

// BaseURL returns the order service root URL
func (c *Client) BaseURL() string {
	return c.http.BaseURL()
}

// CircuitOpen reports whether calls are currently short-circuited
func (c *Client) CircuitOpen() bool {
	return c.http.BreakerOpen()
}

// envelope is the order service's common response wrapper. Logical failures
// come back as success=false with a message.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (e envelope) check(op string) error {
	if e.Success != nil && !*e.Success {
		msg := e.Message
		if msg == "" {
			msg = "no message"
		}
		return fmt.Errorf("%s: %s: %w", op, msg, apperrors.ErrRejected)
	}
	return nil
}

type foodListResponse struct {
	envelope
	Data []core.CatalogItem `json:"data"`
}

type cartResponse struct {
	envelope
	CartData map[string]int `json:"cartData"`
}

type itemRequest struct {
	ItemID string `json:"itemId"`
}

// ListFoods fetches the full catalog
func (c *Client) ListFoods(ctx context.Context) ([]core.CatalogItem, error) {
	body, err := c.http.Get(ctx, PathFoodList, requestOptions(ctx, nil)...)
	if err != nil {
		return nil, classify("list foods", err)
	}

	var resp foodListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("list foods: %w: %v", apperrors.ErrInvalidResponse, err)
	}
	if err := resp.check("list foods"); err != nil {
		return nil, err
	}

	c.logger.Debug("Food list fetched", "items", len(resp.Data))
	return resp.Data, nil
}

// AddToCart notifies the service that one unit of itemID was added
func (c *Client) AddToCart(ctx context.Context, token core.Token, itemID string) error {
	return c.postItem(ctx, "add to cart", PathCartAdd, token, itemID)
}

// RemoveFromCart notifies the service that one unit of itemID was removed
func (c *Client) RemoveFromCart(ctx context.Context, token core.Token, itemID string) error {
	return c.postItem(ctx, "remove from cart", PathCartRemove, token, itemID)
}

// GetCart fetches the server-authoritative cart for token
func (c *Client) GetCart(ctx context.Context, token core.Token) (map[string]int, error) {
	body, err := c.http.Get(ctx, PathCartGet, requestOptions(ctx, &token)...)
	if err != nil {
		return nil, classify("get cart", err)
	}

	var resp cartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("get cart: %w: %v", apperrors.ErrInvalidResponse, err)
	}
	if err := resp.check("get cart"); err != nil {
		return nil, err
	}

	if resp.CartData == nil {
		return map[string]int{}, nil
	}
	return resp.CartData, nil
}

func (c *Client) postItem(ctx context.Context, op, path string, token core.Token, itemID string) error {
	if itemID == "" {
		return fmt.Errorf("%s: %w", op, apperrors.ErrInvalidItemID)
	}

	body, err := c.http.Post(ctx, path, itemRequest{ItemID: itemID}, requestOptions(ctx, &token)...)
	if err != nil {
		return classify(op, err)
	}

	// Acknowledgements are ignored unless they carry an explicit failure
	var ack envelope
	if len(body) > 0 && json.Unmarshal(body, &ack) == nil {
		return ack.check(op)
	}
	return nil
}

// classify maps transport and status errors onto apperrors sentinels
func classify(op string, err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%s: %w (status %d)", op, apperrors.ErrUnauthorized, apiErr.StatusCode)
		case apiErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w (status %d)", op, apperrors.ErrNotFound, apiErr.StatusCode)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%s: %w (status %d)", op, apperrors.ErrGatewayUnavailable, apiErr.StatusCode)
		default:
			return fmt.Errorf("%s: %w: %v", op, apperrors.ErrRejected, apiErr)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrGatewayUnavailable, err)
}
