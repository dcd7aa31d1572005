package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go-restaurant-ordering/checkout"
	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/helpers"
	"go-restaurant-ordering/models"
	"go-restaurant-ordering/notify"
	"go-restaurant-ordering/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t      *testing.T
	router *gin.Engine
	tokens *helpers.TokenHelper
	gw     *gateway.MemoryGateway
	store  *notify.MemoryNotificationStore
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := gateway.NewMemoryGateway()
	hub := notify.NewHub(nil)
	store := notify.NewMemoryNotificationStore()
	sessions := session.NewManager(session.Options{Gateway: gw, Publisher: hub, Window: time.Hour, Settle: time.Hour})
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	orch := checkout.NewOrchestrator(checkout.Options{
		Gateway:   gw,
		Targets:   []notify.Target{notify.NewAdminTarget(store, hub), notify.NewCustomerTarget(store, hub)},
		Publisher: hub,
	})
	tokens := helpers.NewTokenHelper("test-secret")

	router := gin.New()
	Register(router, Deps{
		Tokens:        tokens,
		Sessions:      sessions,
		Gateway:       gw,
		Checkout:      orch,
		Hub:           hub,
		WSOrigins:     []string{"https://shop.example.com"},
		Notifications: store,
	})
	return &api{t: t, router: router, tokens: tokens, gw: gw, store: store}
}

func (a *api) do(who *models.Identity, method, path string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		token, err := a.tokens.GenerateToken(*who)
		require.NoError(a.t, err)
		req.Header.Set("token", token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

var (
	alice = &models.Identity{UserID: "alice", Email: "alice@example.com", Role: models.RoleCustomer}
	bob   = &models.Identity{UserID: "bob", Role: models.RoleCustomer}
	admin = &models.Identity{UserID: "admin", Role: models.RoleAdmin}
)

func TestHealthIsPublic(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusOK, a.do(nil, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(nil, http.MethodGet, "/cart", nil).Code)
}

func TestCartEditsAndCheckout(t *testing.T) {
	a := newAPI(t)

	w := a.do(alice, http.MethodPost, "/cart/lines", gin.H{"item_id": "pizza", "name": "Pizza", "unit_price": 2500, "quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var line models.CartLine
	decode(t, w, &line)

	w = a.do(alice, http.MethodPatch, "/cart/lines/"+line.ID, gin.H{"delta": 2})
	require.Equal(t, http.StatusOK, w.Code)
	var changed struct {
		Quantity int   `json:"quantity"`
		Subtotal int64 `json:"subtotal"`
	}
	decode(t, w, &changed)
	assert.Equal(t, 3, changed.Quantity)
	assert.Equal(t, int64(7500), changed.Subtotal)

	assert.Equal(t, http.StatusBadRequest, a.do(alice, http.MethodPatch, "/cart/lines/"+line.ID, gin.H{"delta": 0}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(alice, http.MethodPatch, "/cart/lines/nope", gin.H{"delta": 1}).Code)

	w = a.do(alice, http.MethodPost, "/checkout/quote", gin.H{"address": "12 Main St", "branch_id": "north"})
	require.Equal(t, http.StatusOK, w.Code)
	var quote models.DeliveryFeeQuote
	decode(t, w, &quote)
	assert.True(t, quote.Fallback)
	assert.Equal(t, int64(500), quote.Fee)

	w = a.do(alice, http.MethodPost, "/checkout", gin.H{"address": "12 Main St", "phone": "0901234567", "branch_id": "north"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"phone"`)

	w = a.do(alice, http.MethodPost, "/checkout", gin.H{"address": "12 Main St", "phone": "+998901234567", "branch_id": "north"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res checkout.Result
	decode(t, w, &res)
	assert.Equal(t, checkout.StatusPlaced, res.Status)
	assert.Equal(t, int64(8000), res.Order.Total)

	stored, err := a.gw.GetOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Lines[0].Quantity)

	w = a.do(alice, http.MethodGet, "/cart", nil)
	assert.Contains(t, w.Body.String(), `"lines":[]`)

	w = a.do(alice, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []models.Notification
	decode(t, w, &notes)
	assert.Len(t, notes, 1)

	assert.Equal(t, http.StatusBadRequest, a.do(alice, http.MethodPost, "/checkout", gin.H{"address": "12 Main St", "phone": "+998901234567"}).Code)
}

func TestOrderAccessAndStatus(t *testing.T) {
	a := newAPI(t)
	order := models.Order{ID: "o1", UserID: "alice", Status: models.StatusPending, Total: 1000}
	require.NoError(t, a.gw.CreateOrder(context.Background(), order))

	w := a.do(alice, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Order
	decode(t, w, &mine)
	assert.Len(t, mine, 1)

	assert.Equal(t, http.StatusOK, a.do(alice, http.MethodGet, "/orders/o1", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(bob, http.MethodGet, "/orders/o1", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(admin, http.MethodGet, "/orders/o1", nil).Code)

	assert.Equal(t, http.StatusForbidden, a.do(alice, http.MethodPatch, "/orders/o1/status", gin.H{"status": "confirmed"}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(admin, http.MethodPatch, "/orders/o1/status", gin.H{"status": "lost"}).Code)
	assert.Equal(t, http.StatusConflict, a.do(admin, http.MethodPatch, "/orders/o1/status", gin.H{"status": "delivered"}).Code)

	w = a.do(admin, http.MethodPatch, "/orders/o1/status", gin.H{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Order
	decode(t, w, &updated)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
}

func TestSetAddressIsAccepted(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusAccepted, a.do(alice, http.MethodPut, "/checkout/address", gin.H{"address": "12 Ma", "branch_id": "north"}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(alice, http.MethodPut, "/checkout/address", gin.H{"address": "12 Ma"}).Code)
}

func TestWebSocketChecksOrigin(t *testing.T) {
	a := newAPI(t)
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	token, err := a.tokens.GenerateToken(*alice)
	require.NoError(t, err)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + url.QueryEscape(token)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://shop.example.com"}})
	require.NoError(t, err)
	conn.Close()
}
