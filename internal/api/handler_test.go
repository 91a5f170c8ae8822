package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cartsync/internal/core"
	"cartsync/internal/gateway"
	httpclient "cartsync/pkg/http"
	"cartsync/pkg/liveserver"
	"cartsync/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore prices every item at 10
type fakeStore struct {
	mu        sync.Mutex
	items     map[string]int
	token     core.Token
	requestID string
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string]int{}}
}

func (f *fakeStore) FoodList() []core.CatalogItem {
	return []core.CatalogItem{{ID: "a", Name: "A", Price: decimal.NewFromInt(10)}}
}

func (f *fakeStore) CartItems() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.items))
	for k, v := range f.items {
		out[k] = v
	}
	return out
}

func (f *fakeStore) Token() (core.Token, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeStore) URL() string { return "http://orders.local" }

func (f *fakeStore) AddToCart(ctx context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestID, _ = gateway.RequestID(ctx)
	f.items[id]++
}

func (f *fakeStore) RemoveFromCart(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items[id] <= 1 {
		delete(f.items, id)
		return
	}
	f.items[id]--
}

func (f *fakeStore) GetTotalCartAmount() decimal.Decimal {
	total := 0
	for _, q := range f.CartItems() {
		total += q * 10
	}
	return decimal.NewFromInt(int64(total))
}

func (f *fakeStore) SetToken(token core.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func newTestAPI(t *testing.T) (*fakeStore, *httptest.Server) {
	t.Helper()
	store := newFakeStore()
	srv := liveserver.NewServer(liveserver.NewHub(nil), logging.NopLogger{}, liveserver.Options{})
	NewHandler(store, nil, logging.NopLogger{}).Register(srv)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return store, ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_State(t *testing.T) {
	store, ts := newTestAPI(t)
	store.items["a"] = 2

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Len(t, state.FoodList, 1)
	assert.Equal(t, map[string]int{"a": 2}, state.CartItems)
	assert.True(t, decimal.NewFromInt(20).Equal(state.Total))
	assert.False(t, state.Authenticated)
	assert.Equal(t, "http://orders.local", state.URL)
}

func TestHandler_AddRemove(t *testing.T) {
	_, ts := newTestAPI(t)

	post(t, ts.URL+"/api/cart/add", `{"itemId":"a"}`)
	resp := post(t, ts.URL+"/api/cart/add", `{"itemId":"a"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cart CartResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cart))
	assert.Equal(t, map[string]int{"a": 2}, cart.CartItems)
	assert.True(t, decimal.NewFromInt(20).Equal(cart.Total))

	resp = post(t, ts.URL+"/api/cart/remove", `{"itemId":"a"}`)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cart))
	assert.Equal(t, map[string]int{"a": 1}, cart.CartItems)
}

func TestHandler_BadRequests(t *testing.T) {
	_, ts := newTestAPI(t)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/cart/add", `{}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/cart/remove", `not json`).StatusCode)

	resp, err := http.Get(ts.URL + "/api/cart/add")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_Session(t *testing.T) {
	store, ts := newTestAPI(t)

	resp := post(t, ts.URL+"/api/session", `{"token":"T"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "T", token.Value())

	resp = post(t, ts.URL+"/api/session", `{"token":""}`)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body["authenticated"])
}

func TestHandler_RejectsInvalidInput(t *testing.T) {
	store, ts := newTestAPI(t)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/cart/add", `{"itemId":"../x"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/session", `{"token":"a b"}`).StatusCode)
	assert.Empty(t, store.CartItems())
	_, ok := store.Token()
	assert.False(t, ok)
}

func TestHandler_ForwardsRequestID(t *testing.T) {
	store, ts := newTestAPI(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/cart/add", strings.NewReader(`{"itemId":"a"}`))
	require.NoError(t, err)
	req.Header.Set(httpclient.RequestIDHeader, "ui-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, "ui-42", store.requestID)
}
