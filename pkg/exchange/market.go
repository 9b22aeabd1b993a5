package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"synthex/pkg/util"
)

// MarketConfig carries the already-validated wiring parameters of one
// instrument. Policy parameters (price bounds, quantities, intervals) live
// with the strategies handed to AddAgent.
type MarketConfig struct {
	ID        int
	Symbol    string
	QueueSize int
}

// Market is the composition root of one instrument: one OrderBook, one
// Transactions ledger, and a set of Agents, bound by direct references.
// It owns the start/stop lifecycle of all three.
type Market struct {
	id     int
	symbol string

	book   *OrderBook
	ledger *Transactions
	feed   *Feed
	agents []*Agent

	clock util.Clock
	log   *zap.SugaredLogger

	mu          sync.Mutex
	started     bool
	bookCancel  context.CancelFunc
	agentCancel context.CancelFunc
	bookDone    chan struct{}
	agentWG     sync.WaitGroup
	runErr      error
}

func NewMarket(cfg MarketConfig, clock util.Clock, log *zap.SugaredLogger) *Market {
	feed := NewFeed()
	ledger := NewTransactions(cfg.ID, log)
	return &Market{
		id:     cfg.ID,
		symbol: cfg.Symbol,
		book:   NewOrderBook(cfg.ID, cfg.Symbol, cfg.QueueSize, ledger, feed, clock, log),
		ledger: ledger,
		feed:   feed,
		clock:  clock,
		log:    log,
	}
}

func (m *Market) ID() int               { return m.id }
func (m *Market) Symbol() string        { return m.symbol }
func (m *Market) Book() *OrderBook      { return m.book }
func (m *Market) Ledger() *Transactions { return m.ledger }

// AddAgent registers an agent with the ledger, subscribes it to the match
// event feed, and adds it to the market. Must be called before Start.
func (m *Market) AddAgent(id int, strategy Strategy, interval time.Duration) (*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil, fmt.Errorf("market %d: cannot add agent after start", m.id)
	}
	for _, a := range m.agents {
		if a.id == id {
			return nil, fmt.Errorf("market %d: agent %d already added", m.id, id)
		}
	}
	m.ledger.RegisterAgent(id)
	a := NewAgent(id, strategy, m.book, m.feed.Subscribe(64), interval, m.clock, m.log)
	m.agents = append(m.agents, a)
	return a, nil
}

// Subscribe attaches an external read-only consumer (e.g. the API stream)
// to the market's match events. Wire before Start.
func (m *Market) Subscribe(buffer int) <-chan MatchEvent {
	return m.feed.Subscribe(buffer)
}

// AddSink attaches a trade sink to the ledger. Wire before Start.
func (m *Market) AddSink(s TradeSink) { m.ledger.AddSink(s) }

// Submit places an order on this market's inbound channel (non-blocking).
func (m *Market) Submit(o *Order) error { return m.book.Submit(o) }

// Start launches all agents, then the OrderBook consumer. If the consumer
// halts on a ledger wiring defect the market stops its own agents.
func (m *Market) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("market %d already started", m.id)
	}
	m.started = true

	agentCtx, agentCancel := context.WithCancel(ctx)
	bookCtx, bookCancel := context.WithCancel(ctx)
	m.agentCancel = agentCancel
	m.bookCancel = bookCancel
	m.bookDone = make(chan struct{})

	for _, a := range m.agents {
		m.agentWG.Add(1)
		go func(a *Agent) {
			defer m.agentWG.Done()
			a.Run(agentCtx)
		}(a)
	}

	go func() {
		defer close(m.bookDone)
		if err := m.book.Run(bookCtx); err != nil {
			m.mu.Lock()
			m.runErr = err
			m.mu.Unlock()
			m.log.Errorw("market_halted", "market", m.id, "symbol", m.symbol, "err", err)
			agentCancel()
		}
	}()

	m.log.Infow("market_started", "market", m.id, "symbol", m.symbol, "agents", len(m.agents))
	return nil
}

// Stop signals the OrderBook to stop, then signals and joins all agents.
// When Stop returns no agent is left producing into an undrained channel.
func (m *Market) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	bookCancel, agentCancel, bookDone := m.bookCancel, m.agentCancel, m.bookDone
	m.mu.Unlock()

	bookCancel()
	<-bookDone
	agentCancel()
	m.agentWG.Wait()
	m.feed.Close()

	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	m.log.Infow("market_stopped", "market", m.id, "symbol", m.symbol, "transactions", m.ledger.Size())
}

// Err reports the fatal error that halted the market, if any.
func (m *Market) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runErr
}

// BestBid returns the highest resting bid price, 0 with no bids.
func (m *Market) BestBid() float64 { return m.book.BestBid() }

// BestAsk returns the lowest resting ask price, 0 with no asks.
func (m *Market) BestAsk() float64 { return m.book.BestAsk() }

// Orderbook returns the depth-capped snapshot (depth < 0 means all).
func (m *Market) Orderbook(depth int) BookSnapshot { return m.book.Snapshot(depth) }

// LastPrice returns the most recent trade price, 0 before any trade.
func (m *Market) LastPrice() float64 { return m.ledger.LastPrice() }
