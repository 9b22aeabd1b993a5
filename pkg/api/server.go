package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"synthex/pkg/exchange"
)

// Server exposes the exchange over REST and WebSocket. It is strictly a
// read-only consumer of the ledger and the match-event feed; the only writes
// it performs go through the markets' inbound order channels.
type Server struct {
	exchange *exchange.Exchange
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
	origins  []string
}

func NewServer(ex *exchange.Exchange, origins []string, log *zap.SugaredLogger) *Server {
	s := &Server{
		exchange: ex,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
		origins:  origins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/symbols", s.handleSymbols).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/bestbid", s.handleBestBid).Methods("GET")
	api.HandleFunc("/markets/{symbol}/bestask", s.handleBestAsk).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleTrades).Methods("GET")
	api.HandleFunc("/markets/{symbol}/agents", s.handleAgents).Methods("GET")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full HTTP handler including CORS. Exposed separately
// from Start for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// StreamMarket forwards a market's match events to WebSocket subscribers of
// trades:<symbol> and pushes an orderbook snapshot to orderbook:<symbol>
// after each event. Call before the market starts; the goroutine exits when
// the market's feed closes.
func (s *Server) StreamMarket(m *exchange.Market) {
	events := m.Subscribe(256)
	symbol := m.Symbol()
	go func() {
		for ev := range events {
			s.hub.BroadcastToChannel("trades:"+symbol, TradeUpdate{
				Type:      "trade",
				Symbol:    symbol,
				Event:     ev.Type.String(),
				OrderID:   ev.Order.ID,
				AgentID:   ev.Order.AgentID,
				Side:      ev.Order.Side.String(),
				Price:     ev.Order.Price,
				Quantity:  ev.Order.Quantity,
				Remaining: ev.Remaining,
				Timestamp: ev.Order.Timestamp.UnixMilli(),
			})
			snap := m.Orderbook(10)
			s.hub.BroadcastToChannel("orderbook:"+symbol, OrderbookUpdate{
				Type:      "orderbook",
				Symbol:    symbol,
				Bids:      snap.Bids,
				Asks:      snap.Asks,
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}()
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.exchange.Symbols())
}

func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	depth := -1
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid depth", err.Error())
			return
		}
		depth = d
	}
	snap, err := s.exchange.Orderbook(symbol, depth)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}
	respondJSON(w, snap)
}

func (s *Server) handleBestBid(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	price, err := s.exchange.BestBid(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}
	respondJSON(w, PriceResponse{Symbol: symbol, Price: price})
}

func (s *Server) handleBestAsk(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	price, err := s.exchange.BestAsk(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}
	respondJSON(w, PriceResponse{Symbol: symbol, Price: price})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	m, ok := s.exchange.Market(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}
	history := m.Ledger().History()
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		if limit < len(history) {
			history = history[len(history)-limit:]
		}
	}
	respondJSON(w, history)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	m, ok := s.exchange.Market(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}
	ledger := m.Ledger()
	positions := ledger.Positions()
	out := make([]AgentInfo, len(positions))
	for i, p := range positions {
		out[i] = AgentInfo{
			AgentID:        p.AgentID,
			Position:       p.Position,
			QuantityBought: p.QuantityBought,
			ValueBought:    p.ValueBought,
			QuantitySold:   p.QuantitySold,
			ValueSold:      p.ValueSold,
			RealizedProfit: ledger.Profit(p.AgentID),
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Cancel {
		s.submitCancel(w, req)
		return
	}

	side, err := exchange.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}
	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp)
	}
	order, err := exchange.NewOrder(req.MarketID, req.AgentID, side, req.Price, req.Quantity, ts)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}
	s.submit(w, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	s.submitCancel(w, req)
}

func (s *Server) submitCancel(w http.ResponseWriter, req OrderRequest) {
	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp)
	}
	cancel, err := exchange.NewCancel(req.MarketID, req.AgentID, req.OrderID, ts)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid cancel", err.Error())
		return
	}
	s.submit(w, cancel)
}

func (s *Server) submit(w http.ResponseWriter, o *exchange.Order) {
	switch err := s.exchange.Submit(o); {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(SubmitResponse{Status: "accepted"})
	case errors.Is(err, exchange.ErrUnknownMarket):
		respondError(w, http.StatusNotFound, "unknown market", err.Error())
	case errors.Is(err, exchange.ErrQueueFull):
		respondError(w, http.StatusServiceUnavailable, "queue full", "retry later")
	case errors.Is(err, exchange.ErrStopped):
		respondError(w, http.StatusServiceUnavailable, "market stopped", "")
	default:
		respondError(w, http.StatusInternalServerError, "submit failed", err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}
