package api

import "synthex/pkg/exchange"

// OrderRequest is the wire form of an order submission. With cancel=true the
// orderId must reference an existing order; otherwise side, price and
// quantity are required. timestamp is unix milliseconds, 0 meaning "now".
type OrderRequest struct {
	MarketID  int     `json:"marketId"`
	AgentID   int     `json:"agentId"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Timestamp int64   `json:"timestamp"`
	Cancel    bool    `json:"cancel"`
	OrderID   int64   `json:"orderId,omitempty"`
}

type SubmitResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PriceResponse carries a single bestBid/bestAsk style price, 0 when the
// respective book side is empty.
type PriceResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// AgentInfo is one agent's ledger view: aggregates plus realized profit.
type AgentInfo struct {
	AgentID        int     `json:"agentId"`
	Position       float64 `json:"position"`
	QuantityBought float64 `json:"quantityBought"`
	ValueBought    float64 `json:"valueBought"`
	QuantitySold   float64 `json:"quantitySold"`
	ValueSold      float64 `json:"valueSold"`
	RealizedProfit float64 `json:"realizedProfit"`
}

// TradeUpdate is broadcast on trades:<symbol> for every match event.
type TradeUpdate struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Event     string  `json:"event"`
	OrderID   int64   `json:"orderId"`
	AgentID   int     `json:"agentId"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Remaining float64 `json:"remaining"`
	Timestamp int64   `json:"timestamp"`
}

// OrderbookUpdate is broadcast on orderbook:<symbol> after book changes.
type OrderbookUpdate struct {
	Type      string               `json:"type"`
	Symbol    string               `json:"symbol"`
	Bids      []exchange.BookEntry `json:"bids"`
	Asks      []exchange.BookEntry `json:"asks"`
	Timestamp int64                `json:"timestamp"`
}

// WSSubscribeRequest is the client → server subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}
