package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synthex/pkg/exchange"
	"synthex/pkg/util"
)

func newTestServer(t *testing.T) (*Server, *exchange.Exchange, *exchange.Market) {
	t.Helper()
	log := zap.NewNop().Sugar()
	ex := exchange.NewExchange(log)
	m := exchange.NewMarket(exchange.MarketConfig{ID: 1, Symbol: "SYN-USD", QueueSize: 10},
		util.RealClock{}, log)
	m.Ledger().RegisterAgent(1)
	m.Ledger().RegisterAgent(2)
	require.NoError(t, ex.Register(m))
	return NewServer(ex, nil, log), ex, m
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerSymbols(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), "GET", "/api/v1/symbols", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var symbols []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &symbols))
	assert.Equal(t, []string{"SYN-USD"}, symbols)
}

func TestServerHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerOrderbook(t *testing.T) {
	s, _, m := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	o, err := exchange.NewOrder(1, 1, exchange.Buy, 100, 5, time.Now())
	require.NoError(t, err)
	require.NoError(t, m.Submit(o))
	require.Eventually(t, func() bool { return m.BestBid() == 100.0 },
		2*time.Second, 5*time.Millisecond)

	rec := doJSON(t, s.Handler(), "GET", "/api/v1/markets/SYN-USD/orderbook?depth=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap exchange.BookSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, 100.0, snap.Bids[0].Price)

	rec = doJSON(t, s.Handler(), "GET", "/api/v1/markets/SYN-USD/bestbid", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var price PriceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &price))
	assert.Equal(t, 100.0, price.Price)

	rec = doJSON(t, s.Handler(), "GET", "/api/v1/markets/SYN-USD/orderbook?depth=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s.Handler(), "GET", "/api/v1/markets/NOPE/orderbook", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, s.Handler(), "GET", "/api/v1/markets/NOPE/bestask", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerSubmitOrder(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, "POST", "/api/v1/orders",
		`{"marketId":1,"agentId":1,"side":"BUY","price":100,"quantity":5}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/orders",
		`{"marketId":1,"agentId":1,"side":"HOLD","price":100,"quantity":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/orders",
		`{"marketId":1,"agentId":1,"side":"BUY","price":-1,"quantity":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/orders",
		`{"marketId":99,"agentId":1,"side":"BUY","price":100,"quantity":5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/orders", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerSubmitQueueFull(t *testing.T) {
	s, _, m := newTestServer(t)
	h := s.Handler()

	// Nothing consumes the market's queue (capacity 10).
	for i := 0; i < 10; i++ {
		o, err := exchange.NewOrder(1, 1, exchange.Buy, 100, 5, time.Now())
		require.NoError(t, err)
		require.NoError(t, m.Submit(o))
	}

	rec := doJSON(t, h, "POST", "/api/v1/orders",
		`{"marketId":1,"agentId":1,"side":"BUY","price":100,"quantity":5}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerCancelOrder(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, "POST", "/api/v1/orders/cancel",
		`{"marketId":1,"agentId":1,"orderId":42}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/orders/cancel",
		`{"marketId":1,"agentId":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "cancel requires a target order id")

	// Cancel via the orders endpoint with the cancel flag.
	rec = doJSON(t, h, "POST", "/api/v1/orders",
		`{"marketId":1,"agentId":1,"cancel":true,"orderId":42}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServerTradesAndAgents(t *testing.T) {
	s, _, m := newTestServer(t)
	h := s.Handler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	sell, err := exchange.NewOrder(1, 2, exchange.Sell, 100, 5, time.Now())
	require.NoError(t, err)
	buy, err := exchange.NewOrder(1, 1, exchange.Buy, 100, 5, time.Now())
	require.NoError(t, err)
	require.NoError(t, m.Submit(sell))
	require.NoError(t, m.Submit(buy))
	require.Eventually(t, func() bool { return m.Ledger().Size() == 1 },
		2*time.Second, 5*time.Millisecond)

	rec := doJSON(t, h, "GET", "/api/v1/markets/SYN-USD/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []exchange.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, 100.0, trades[0].Price)

	rec = doJSON(t, h, "GET", "/api/v1/markets/SYN-USD/trades?limit=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	trades = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	assert.Len(t, trades, 0)

	rec = doJSON(t, h, "GET", "/api/v1/markets/SYN-USD/trades?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, "GET", "/api/v1/markets/SYN-USD/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var agents []AgentInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 2)
	assert.Equal(t, 1, agents[0].AgentID)
	assert.Equal(t, 5.0, agents[0].Position)
	assert.Equal(t, -5.0, agents[1].Position)

	rec = doJSON(t, h, "GET", "/api/v1/markets/NOPE/trades", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, h, "GET", "/api/v1/markets/NOPE/agents", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
