package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Exchange aggregates markets by symbol and forwards queries to them. It
// owns no matching logic; markets do not share mutable state, so the only
// synchronization here is around the registry itself.
type Exchange struct {
	mu       sync.RWMutex
	bySymbol map[string]*Market
	byID     map[int]*Market
	log      *zap.SugaredLogger
}

func NewExchange(log *zap.SugaredLogger) *Exchange {
	return &Exchange{
		bySymbol: make(map[string]*Market),
		byID:     make(map[int]*Market),
		log:      log,
	}
}

// Register adds a market. Duplicate symbols or ids are rejected.
func (e *Exchange) Register(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.bySymbol[m.Symbol()]; ok {
		return fmt.Errorf("market %s already registered", m.Symbol())
	}
	if _, ok := e.byID[m.ID()]; ok {
		return fmt.Errorf("market id %d already registered", m.ID())
	}
	e.bySymbol[m.Symbol()] = m
	e.byID[m.ID()] = m
	return nil
}

// Market returns the market trading symbol.
func (e *Exchange) Market(symbol string) (*Market, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.bySymbol[symbol]
	return m, ok
}

// MarketByID returns the market with the given id.
func (e *Exchange) MarketByID(id int) (*Market, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.byID[id]
	return m, ok
}

// Symbols lists registered symbols in lexical order.
func (e *Exchange) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.bySymbol))
	for s := range e.bySymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Markets returns all registered markets.
func (e *Exchange) Markets() []*Market {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Market, 0, len(e.bySymbol))
	for _, m := range e.bySymbol {
		out = append(out, m)
	}
	return out
}

// BestBid returns the symbol's highest resting bid price, 0 with no bids.
func (e *Exchange) BestBid(symbol string) (float64, error) {
	m, ok := e.Market(symbol)
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	return m.BestBid(), nil
}

// BestAsk returns the symbol's lowest resting ask price, 0 with no asks.
func (e *Exchange) BestAsk(symbol string) (float64, error) {
	m, ok := e.Market(symbol)
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	return m.BestAsk(), nil
}

// Orderbook returns the symbol's snapshot capped at depth (< 0 means all).
func (e *Exchange) Orderbook(symbol string, depth int) (BookSnapshot, error) {
	m, ok := e.Market(symbol)
	if !ok {
		return BookSnapshot{}, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	return m.Orderbook(depth), nil
}

// Submit routes an order to its market's inbound channel.
func (e *Exchange) Submit(o *Order) error {
	m, ok := e.MarketByID(o.MarketID)
	if !ok {
		return fmt.Errorf("market %d: %w", o.MarketID, ErrUnknownMarket)
	}
	return m.Submit(o)
}

// Start starts every registered market.
func (e *Exchange) Start(ctx context.Context) error {
	for _, m := range e.Markets() {
		if err := m.Start(ctx); err != nil {
			return err
		}
	}
	e.log.Infow("exchange_started", "markets", len(e.Symbols()))
	return nil
}

// Stop stops every registered market and blocks until all are joined.
func (e *Exchange) Stop() {
	for _, m := range e.Markets() {
		m.Stop()
	}
	e.log.Infow("exchange_stopped")
}
