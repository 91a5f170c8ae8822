package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cartsync/internal/config"
	"cartsync/internal/core"
	"cartsync/internal/gateway"
	"cartsync/internal/session"
	"cartsync/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlineDispatcher struct{}

func (inlineDispatcher) Submit(task func()) error {
	task()
	return nil
}

// orderService is an in-memory stand-in for the remote order service
type orderService struct {
	mu        sync.Mutex
	foods     string
	cartData  map[string]int
	failFoods bool
	calls     []string
	listed    int
}

func (o *orderService) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()

		switch r.URL.Path {
		case gateway.PathFoodList:
			o.listed++
			if o.failFoods {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"data":` + o.foods + `}`))
		case gateway.PathCartGet:
			if r.Header.Get("Authorization") != "Bearer T" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "cartData": o.cartData})
		case gateway.PathCartAdd, gateway.PathCartRemove:
			var body struct {
				ItemID string `json:"itemId"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			o.calls = append(o.calls, r.URL.Path+":"+body.ItemID)
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (o *orderService) recorded() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func newOrderService() *orderService {
	return &orderService{
		foods:    `[{"_id":"a","name":"A","price":10},{"_id":"b","name":"B","price":5}]`,
		cartData: map[string]int{},
	}
}

func newTestStore(t *testing.T, svc *orderService, slot core.ISessionStore) *Store {
	t.Helper()
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig().Gateway
	cfg.BaseURL = server.URL
	gw := gateway.NewClient(cfg, logging.NopLogger{})
	return New(gw, slot, inlineDispatcher{}, logging.NopLogger{})
}

type failingSlot struct {
	session.MemoryStore
}

func (*failingSlot) Get(context.Context) (core.Token, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestStore_BootstrapWithoutSession(t *testing.T) {
	svc := newOrderService()
	s := newTestStore(t, svc, session.NewMemoryStore())

	s.Bootstrap(context.Background())

	assert.Len(t, s.FoodList(), 2)
	assert.True(t, s.CatalogLoaded())
	_, ok := s.Token()
	assert.False(t, ok)
	assert.Empty(t, s.CartItems())

	s.AddToCart(context.Background(), "a")
	assert.Equal(t, map[string]int{"a": 1}, s.CartItems())
	assert.Empty(t, svc.recorded(), "no remote call without a session")
}

func TestStore_BootstrapRestoresSession(t *testing.T) {
	svc := newOrderService()
	svc.cartData = map[string]int{"a": 2, "b": 1, "gone": 0}
	s := newTestStore(t, svc, session.NewMemoryStoreWithToken("T"))

	s.Bootstrap(context.Background())

	token, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "T", token.Value())
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, s.CartItems())
	assert.True(t, decimal.NewFromInt(25).Equal(s.GetTotalCartAmount()))
}

func TestStore_BootstrapRunsOnce(t *testing.T) {
	svc := newOrderService()
	s := newTestStore(t, svc, session.NewMemoryStore())

	s.Bootstrap(context.Background())
	s.Bootstrap(context.Background())

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, 1, svc.listed)
}

func TestStore_CatalogFailureLeavesTotalsZero(t *testing.T) {
	svc := newOrderService()
	svc.failFoods = true
	s := newTestStore(t, svc, session.NewMemoryStore())

	s.Bootstrap(context.Background())
	s.AddToCart(context.Background(), "a")

	assert.Empty(t, s.FoodList())
	assert.False(t, s.CatalogLoaded())
	assert.Equal(t, map[string]int{"a": 1}, s.CartItems())
	assert.True(t, s.GetTotalCartAmount().IsZero())
}

func TestStore_SessionReadFailureTreatedAsAbsent(t *testing.T) {
	svc := newOrderService()
	s := newTestStore(t, svc, &failingSlot{})

	s.Bootstrap(context.Background())

	_, ok := s.Token()
	assert.False(t, ok)
	assert.Len(t, s.FoodList(), 2)
}

func TestStore_SetTokenEnablesSync(t *testing.T) {
	svc := newOrderService()
	svc.cartData = map[string]int{"b": 9}
	s := newTestStore(t, svc, session.NewMemoryStore())
	s.Bootstrap(context.Background())

	s.SetToken("T")
	s.AddToCart(context.Background(), "a")
	s.RemoveFromCart(context.Background(), "a")

	assert.Empty(t, s.CartItems(), "SetToken must not reload")
	assert.Equal(t, []string{
		gateway.PathCartAdd + ":a",
		gateway.PathCartRemove + ":a",
	}, svc.recorded())
}

func TestStore_LoginLogout(t *testing.T) {
	svc := newOrderService()
	svc.cartData = map[string]int{"a": 3}
	slot := session.NewMemoryStore()
	s := newTestStore(t, svc, slot)
	ctx := context.Background()
	s.Bootstrap(ctx)

	require.NoError(t, s.Login(ctx, "T"))
	assert.Equal(t, map[string]int{"a": 3}, s.CartItems())

	saved, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T", saved.Value())

	require.NoError(t, s.Logout(ctx))
	_, ok = s.Token()
	assert.False(t, ok)
	_, ok, err = slot.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, s.Login(ctx, ""))
}

func TestStore_SnapshotAndSubscribe(t *testing.T) {
	svc := newOrderService()
	s := newTestStore(t, svc, session.NewMemoryStore())
	s.Bootstrap(context.Background())

	var got []core.CartSnapshot
	s.Subscribe(func(snap core.CartSnapshot) {
		got = append(got, snap)
	})

	s.AddToCart(context.Background(), "a")
	s.AddToCart(context.Background(), "b")

	require.Len(t, got, 2)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, got[1].Items)
	assert.True(t, decimal.NewFromInt(15).Equal(got[1].Total))

	snap := s.Snapshot()
	assert.Equal(t, got[1].Items, snap.Items)
	assert.True(t, snap.Total.Equal(s.GetTotalCartAmount()))
}

func TestStore_URL(t *testing.T) {
	s := newTestStore(t, newOrderService(), session.NewMemoryStore())
	assert.Contains(t, s.URL(), "http://127.0.0.1")
}
