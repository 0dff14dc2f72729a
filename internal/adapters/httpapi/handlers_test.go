package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predmarket/internal/adapters/httpapi"
	"github.com/alejandrodnm/predmarket/internal/engine"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := httpapi.NewHub(logger)
	eng := engine.New(nil, hub)
	api := httpapi.NewAPI(eng, logger, 5, 100)

	server := httpapi.NewServer(httpapi.Config{
		Port:            0,
		CORSOrigins:     []string{"*"},
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
	}, api, hub, logger)
	return server.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createMarket(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/markets", map[string]any{
		"question":        "Will it rain tomorrow?",
		"description":     "Test market",
		"outcomes":        []string{"YES", "NO"},
		"resolution_time": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"creator_id":      "creator-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	return body["market_id"].(string)
}

func TestAPI_Health(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestAPI_CreateAndGetMarket(t *testing.T) {
	handler := newTestServer(t)
	marketID := createMarket(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/markets/"+marketID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Will it rain tomorrow?", body["question"])
	assert.Equal(t, false, body["resolved"])
	assert.Contains(t, body, "current_prices")
}

func TestAPI_CreateMarket_BadRequests(t *testing.T) {
	handler := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing question", map[string]any{
			"outcomes": []string{"YES", "NO"}, "resolution_time": "2030-01-01T00:00:00Z", "creator_id": "c",
		}},
		{"bad resolution_time", map[string]any{
			"question": "q?", "outcomes": []string{"YES", "NO"}, "resolution_time": "tomorrow", "creator_id": "c",
		}},
		{"empty outcomes", map[string]any{
			"question": "q?", "outcomes": []string{}, "resolution_time": "2030-01-01T00:00:00Z", "creator_id": "c",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/markets", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAPI_GetMarket_NotFound(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/markets/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_PlaceOrderAndMatch(t *testing.T) {
	handler := newTestServer(t)
	marketID := createMarket(t, handler)

	// Bid en reposo
	rec := doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "alice",
		"side": "BUY", "order_type": "LIMIT", "quantity": 100, "price": 0.60,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Empty(t, body["trades"])

	// Ask en reposo
	rec = doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "bob",
		"side": "SELL", "order_type": "LIMIT", "quantity": 50, "price": 0.65,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// MARKET que cruza contra el ask
	rec = doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "charlie",
		"side": "BUY", "order_type": "MARKET", "quantity": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body = decode(t, rec)
	trades := body["trades"].([]any)
	require.Len(t, trades, 1)

	trade := trades[0].(map[string]any)
	assert.Equal(t, "charlie", trade["buyer_id"])
	assert.Equal(t, "bob", trade["seller_id"])
	assert.InDelta(t, 0.65, trade["price"].(float64), 1e-9)
	assert.InDelta(t, 30, trade["quantity"].(float64), 1e-9)

	order := body["order"].(map[string]any)
	assert.InDelta(t, 30, order["filled_quantity"].(float64), 1e-9)
	assert.InDelta(t, 0, order["remaining_quantity"].(float64), 1e-9)
}

func TestAPI_PlaceOrder_Validation(t *testing.T) {
	handler := newTestServer(t)
	marketID := createMarket(t, handler)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown market", map[string]any{
			"market_id": "nope", "outcome": "YES", "trader_id": "a",
			"side": "BUY", "order_type": "LIMIT", "quantity": 10, "price": 0.5,
		}, http.StatusNotFound},
		{"bad side", map[string]any{
			"market_id": marketID, "outcome": "YES", "trader_id": "a",
			"side": "HOLD", "order_type": "LIMIT", "quantity": 10, "price": 0.5,
		}, http.StatusBadRequest},
		{"bad order type", map[string]any{
			"market_id": marketID, "outcome": "YES", "trader_id": "a",
			"side": "BUY", "order_type": "STOP", "quantity": 10, "price": 0.5,
		}, http.StatusBadRequest},
		{"limit without price", map[string]any{
			"market_id": marketID, "outcome": "YES", "trader_id": "a",
			"side": "BUY", "order_type": "LIMIT", "quantity": 10,
		}, http.StatusBadRequest},
		{"unknown outcome", map[string]any{
			"market_id": marketID, "outcome": "MAYBE", "trader_id": "a",
			"side": "BUY", "order_type": "LIMIT", "quantity": 10, "price": 0.5,
		}, http.StatusBadRequest},
		{"zero quantity", map[string]any{
			"market_id": marketID, "outcome": "YES", "trader_id": "a",
			"side": "BUY", "order_type": "LIMIT", "quantity": 0, "price": 0.5,
		}, http.StatusBadRequest},
		{"price out of range", map[string]any{
			"market_id": marketID, "outcome": "YES", "trader_id": "a",
			"side": "BUY", "order_type": "LIMIT", "quantity": 10, "price": 1.5,
		}, http.StatusBadRequest},
		{"missing trader", map[string]any{
			"market_id": marketID, "outcome": "YES",
			"side": "BUY", "order_type": "LIMIT", "quantity": 10, "price": 0.5,
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/orders", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAPI_OrderBookDepth(t *testing.T) {
	handler := newTestServer(t)
	marketID := createMarket(t, handler)

	doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "alice",
		"side": "BUY", "order_type": "LIMIT", "quantity": 100, "price": 0.60,
	})
	doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "bob",
		"side": "SELL", "order_type": "LIMIT", "quantity": 50, "price": 0.65,
	})

	rec := doJSON(t, handler, http.MethodGet,
		fmt.Sprintf("/api/markets/%s/orderbook?outcome=YES", marketID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.InDelta(t, 0.60, body["best_bid"].(float64), 1e-9)
	assert.InDelta(t, 0.65, body["best_ask"].(float64), 1e-9)
	assert.InDelta(t, 0.625, body["midpoint"].(float64), 1e-9)

	// outcome obligatorio
	rec = doJSON(t, handler, http.MethodGet,
		fmt.Sprintf("/api/markets/%s/orderbook", marketID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// outcome desconocido es 404 en esta ruta
	rec = doJSON(t, handler, http.MethodGet,
		fmt.Sprintf("/api/markets/%s/orderbook?outcome=MAYBE", marketID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CancelOrder(t *testing.T) {
	handler := newTestServer(t)
	marketID := createMarket(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "alice",
		"side": "BUY", "order_type": "LIMIT", "quantity": 100, "price": 0.60,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decode(t, rec)["order"].(map[string]any)["order_id"].(string)

	rec = doJSON(t, handler, http.MethodDelete, "/api/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode(t, rec)["status"])

	// Segunda cancelación: 404
	rec = doJSON(t, handler, http.MethodDelete, "/api/orders/"+orderID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_TraderOrders(t *testing.T) {
	handler := newTestServer(t)
	marketID := createMarket(t, handler)

	doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "alice",
		"side": "BUY", "order_type": "LIMIT", "quantity": 100, "price": 0.60,
	})

	rec := doJSON(t, handler, http.MethodGet, "/api/traders/alice/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.InDelta(t, 1, body["count"].(float64), 1e-9)

	rec = doJSON(t, handler, http.MethodGet, "/api/traders/nobody/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0, decode(t, rec)["count"].(float64), 1e-9)
}

func TestAPI_MarketTrades(t *testing.T) {
	handler := newTestServer(t)
	marketID := createMarket(t, handler)

	doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "bob",
		"side": "SELL", "order_type": "LIMIT", "quantity": 50, "price": 0.65,
	})
	doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "alice",
		"side": "BUY", "order_type": "MARKET", "quantity": 30,
	})

	rec := doJSON(t, handler, http.MethodGet,
		fmt.Sprintf("/api/markets/%s/trades", marketID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1, decode(t, rec)["count"].(float64), 1e-9)

	rec = doJSON(t, handler, http.MethodGet, "/api/markets/nope/trades", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ResolveMarket(t *testing.T) {
	handler := newTestServer(t)
	marketID := createMarket(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/markets/"+marketID+"/resolve",
		map[string]any{"winning_outcome": "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/markets/"+marketID+"/resolve",
		map[string]any{"winning_outcome": "YES"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/markets/"+marketID, nil)
	body := decode(t, rec)
	assert.Equal(t, true, body["resolved"])
	assert.Equal(t, "YES", body["winning_outcome"])

	// El mercado resuelto rechaza órdenes nuevas
	rec = doJSON(t, handler, http.MethodPost, "/api/orders", map[string]any{
		"market_id": marketID, "outcome": "YES", "trader_id": "alice",
		"side": "BUY", "order_type": "LIMIT", "quantity": 10, "price": 0.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/markets/nope/resolve",
		map[string]any{"winning_outcome": "YES"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListMarkets(t *testing.T) {
	handler := newTestServer(t)
	createMarket(t, handler)
	marketID := createMarket(t, handler)

	// Resolver uno lo saca del listado activo
	rec := doJSON(t, handler, http.MethodPost, "/api/markets/"+marketID+"/resolve",
		map[string]any{"winning_outcome": "NO"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/markets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1, decode(t, rec)["count"].(float64), 1e-9)

	rec = doJSON(t, handler, http.MethodGet, "/api/markets?active_only=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 2, decode(t, rec)["count"].(float64), 1e-9)
}
