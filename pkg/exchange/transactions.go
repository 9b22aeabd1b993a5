package exchange

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transaction records one executed trade. Immutable once created.
type Transaction struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	MarketID    int       `json:"marketId"`
	BuyOrderID  int64     `json:"buyOrderId"`
	SellOrderID int64     `json:"sellOrderId"`
	BuyAgentID  int       `json:"buyAgentId"`
	SellAgentID int       `json:"sellAgentId"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
}

func (t *Transaction) String() string {
	return fmt.Sprintf("txn{id=%d market=%d buy=%d sell=%d %v@%v ts=%s}",
		t.ID, t.MarketID, t.BuyOrderID, t.SellOrderID, t.Quantity, t.Price,
		t.Timestamp.Format(time.RFC3339Nano))
}

// PricePoint is the compact time series entry kept per transaction.
type PricePoint struct {
	TxnID     int64     `json:"txnId"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// AgentMark is one per-agent history entry, recorded for both sides of every
// transaction after the aggregates are updated.
type AgentMark struct {
	TxnID    int64   `json:"txnId"`
	Position float64 `json:"position"`
	Profit   float64 `json:"profit"`
}

// Position holds one agent's ledger aggregates for this market.
type Position struct {
	AgentID        int     `json:"agentId"`
	Position       float64 `json:"position"`
	QuantityBought float64 `json:"quantityBought"`
	ValueBought    float64 `json:"valueBought"`
	QuantitySold   float64 `json:"quantitySold"`
	ValueSold      float64 `json:"valueSold"`
}

// TradeSink receives every created transaction, e.g. a journal. Sinks are
// invoked on the matching goroutine and must not block.
type TradeSink interface {
	OnTransaction(tx Transaction)
}

// Transactions is the append-only trade ledger of one market. Create is
// invoked exclusively by the market's OrderBook consumer; the lock exists
// only so that reporting consumers can read concurrently.
type Transactions struct {
	mu       sync.RWMutex
	marketID int
	seq      *Sequence
	log      *zap.SugaredLogger

	positions map[int]*Position
	history   []*Transaction
	series    []PricePoint
	byAgent   map[int][]AgentMark
	registry  map[int64]*Transaction
	sinks     []TradeSink
}

func NewTransactions(marketID int, log *zap.SugaredLogger) *Transactions {
	return &Transactions{
		marketID:  marketID,
		seq:       &Sequence{},
		log:       log,
		positions: make(map[int]*Position),
		byAgent:   make(map[int][]AgentMark),
		registry:  make(map[int64]*Transaction),
	}
}

// RegisterAgent creates the ledger record for an agent. Every agent must be
// registered before any transaction referencing it is created.
func (t *Transactions) RegisterAgent(agentID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.positions[agentID]; !ok {
		t.positions[agentID] = &Position{AgentID: agentID}
	}
}

// AddSink attaches a trade sink. Wire sinks before the market starts.
func (t *Transactions) AddSink(s TradeSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, s)
}

// Create records a trade between buy and sell, updates both agents'
// aggregates and histories, and registers the transaction by id. A missing
// ledger record for either agent is a wiring defect: Create returns
// ErrUnknownAgent and the market must halt.
func (t *Transactions) Create(buy, sell *Order, marketID int, price, quantity float64) (*Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buyer, ok := t.positions[buy.AgentID]
	if !ok {
		return nil, fmt.Errorf("buy agent %d: %w", buy.AgentID, ErrUnknownAgent)
	}
	seller, ok := t.positions[sell.AgentID]
	if !ok {
		return nil, fmt.Errorf("sell agent %d: %w", sell.AgentID, ErrUnknownAgent)
	}

	ts := buy.Timestamp
	if sell.Timestamp.After(ts) {
		ts = sell.Timestamp
	}
	tx := &Transaction{
		ID:          t.seq.Next(),
		Timestamp:   ts,
		MarketID:    marketID,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		BuyAgentID:  buy.AgentID,
		SellAgentID: sell.AgentID,
		Price:       price,
		Quantity:    quantity,
	}

	t.history = append(t.history, tx)
	t.series = append(t.series, PricePoint{TxnID: tx.ID, Timestamp: tx.Timestamp, Price: tx.Price})

	buyer.Position += quantity
	buyer.ValueBought += price * quantity
	buyer.QuantityBought += quantity
	seller.Position -= quantity
	seller.ValueSold += price * quantity
	seller.QuantitySold += quantity

	t.byAgent[buy.AgentID] = append(t.byAgent[buy.AgentID], AgentMark{
		TxnID: tx.ID, Position: buyer.Position, Profit: profit(buyer),
	})
	t.byAgent[sell.AgentID] = append(t.byAgent[sell.AgentID], AgentMark{
		TxnID: tx.ID, Position: seller.Position, Profit: profit(seller),
	})

	t.registry[tx.ID] = tx

	for _, s := range t.sinks {
		s.OnTransaction(*tx)
	}
	return tx, nil
}

// profit is the realized P&L: matched volume times the VWAP spread between
// sells and buys. Zero VWAP on a side with no volume.
func profit(p *Position) float64 {
	var askVwap, bidVwap float64
	if p.QuantitySold > 0 {
		askVwap = p.ValueSold / p.QuantitySold
	}
	if p.QuantityBought > 0 {
		bidVwap = p.ValueBought / p.QuantityBought
	}
	matched := p.QuantitySold
	if p.QuantityBought < matched {
		matched = p.QuantityBought
	}
	return matched * (askVwap - bidVwap)
}

// Profit returns the realized profit for an agent, 0 for unknown agents.
func (t *Transactions) Profit(agentID int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[agentID]
	if !ok {
		return 0
	}
	return profit(p)
}

// Remove deletes a transaction from the registry. Absence is logged and
// otherwise ignored; history is append-only and unaffected.
func (t *Transactions) Remove(txnID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.registry[txnID]; !ok {
		t.log.Warnw("remove_unknown_transaction", "market", t.marketID, "txn", txnID)
		return
	}
	delete(t.registry, txnID)
}

// Get looks a transaction up by id.
func (t *Transactions) Get(txnID int64) (*Transaction, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tx, ok := t.registry[txnID]
	return tx, ok
}

// History returns a copy of the full transaction history, oldest first.
func (t *Transactions) History() []Transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Transaction, len(t.history))
	for i, tx := range t.history {
		out[i] = *tx
	}
	return out
}

// HistoryList returns the compact (id, timestamp, price) series.
func (t *Transactions) HistoryList() []PricePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PricePoint, len(t.series))
	copy(out, t.series)
	return out
}

// AgentHistory returns the per-agent (txnId, position, profit) entries.
func (t *Transactions) AgentHistory(agentID int) []AgentMark {
	t.mu.RLock()
	defer t.mu.RUnlock()
	marks := t.byAgent[agentID]
	out := make([]AgentMark, len(marks))
	copy(out, marks)
	return out
}

// PositionOf returns a copy of an agent's aggregates.
func (t *Transactions) PositionOf(agentID int) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[agentID]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all agents' aggregates, ordered by agent id.
func (t *Transactions) Positions() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// LastPrice returns the price of the most recent transaction, 0 if none.
func (t *Transactions) LastPrice() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.series) == 0 {
		return 0
	}
	return t.series[len(t.series)-1].Price
}

// Size returns the number of transactions ever created.
func (t *Transactions) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.history)
}
