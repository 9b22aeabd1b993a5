package exchange

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"synthex/pkg/util"
)

// DefaultQueueSize is the capacity of a market's inbound order channel.
const DefaultQueueSize = 100

// defaultIdleWait bounds how long the consumer blocks on an empty queue so
// stop signals are observed promptly.
const defaultIdleWait = 250 * time.Millisecond

// OrderBook is the matching engine of one market: the single consumer of the
// market's inbound order channel and the sole mutator of the resting book
// and the ledger. Sequencing is structural (single writer); the lock below
// only isolates snapshot queries from the consumer goroutine.
type OrderBook struct {
	marketID int
	symbol   string

	mu   sync.RWMutex
	book *book

	inbound chan *Order
	ledger  *Transactions
	feed    *Feed
	seq     *Sequence
	clock   util.Clock
	log     *zap.SugaredLogger

	idleWait time.Duration
	running  atomic.Bool
}

func NewOrderBook(marketID int, symbol string, queueSize int, ledger *Transactions, feed *Feed, clock util.Clock, log *zap.SugaredLogger) *OrderBook {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ob := &OrderBook{
		marketID: marketID,
		symbol:   symbol,
		book:     newBook(),
		inbound:  make(chan *Order, queueSize),
		ledger:   ledger,
		feed:     feed,
		seq:      &Sequence{},
		clock:    clock,
		log:      log,
		idleWait: defaultIdleWait,
	}
	// Accept submissions from the moment of construction: agents are started
	// before the consumer loop and the channel buffers until Run drains it.
	ob.running.Store(true)
	return ob
}

// Submit places an order on the inbound channel without blocking. A full
// queue is reported as ErrQueueFull; the caller decides retry-or-drop.
func (ob *OrderBook) Submit(o *Order) error {
	if !ob.running.Load() {
		return ErrStopped
	}
	select {
	case ob.inbound <- o:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run consumes the inbound channel until ctx is cancelled. Errors while
// processing one order are logged and the loop continues; a ledger
// precondition violation halts the market and is returned to the owner.
// In-flight channel contents at shutdown are discarded.
func (ob *OrderBook) Run(ctx context.Context) error {
	ob.running.Store(true)
	defer ob.running.Store(false)
	ob.log.Infow("orderbook_started", "market", ob.marketID, "symbol", ob.symbol)

	for {
		select {
		case <-ctx.Done():
			ob.log.Infow("orderbook_stopped", "market", ob.marketID, "pending", len(ob.inbound))
			return nil
		case o := <-ob.inbound:
			if o == nil {
				continue
			}
			if err := ob.process(o); err != nil {
				if errors.Is(err, ErrUnknownAgent) {
					ob.log.Errorw("ledger_wiring_defect", "market", ob.marketID, "order", o.String(), "err", err)
					return err
				}
				ob.log.Warnw("order_rejected", "market", ob.marketID, "order", o.String(), "err", err)
			}
		case <-ob.clock.After(ob.idleWait):
			// Idle wakeup so the stop signal is checked on quiet markets.
		}
	}
}

// process dispatches one inbound item. Exercised directly by tests; the Run
// loop is a thin channel pump around it.
func (ob *OrderBook) process(o *Order) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if o.Cancel {
		ob.processCancel(o)
		return nil
	}
	if o.Side != Buy && o.Side != Sell {
		return &ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if o.Price <= 0 || o.Quantity <= 0 {
		return &ValidationError{Field: "order", Reason: "price and quantity must be positive"}
	}

	// Ids are assigned here, by the engine, from the market-owned sequence.
	o.ID = ob.seq.Next()
	o.Remaining = o.Quantity
	o.State = Open
	return ob.match(o)
}

// match runs the price-time-priority loop for an incoming limit order.
// Trades execute at the resting order's price (maker price); resting orders
// from the same agent are never candidates (self-trade prevention).
func (ob *OrderBook) match(o *Order) error {
	remaining := o.Quantity

	for remaining > 0 {
		best := ob.book.bestOpposite(o.Side, o.AgentID)
		if best == nil {
			break
		}
		crossed := (o.Side == Buy && o.Price >= best.Price) ||
			(o.Side == Sell && o.Price <= best.Price)
		if !crossed {
			break
		}

		tradeQty := remaining
		if best.Remaining < tradeQty {
			tradeQty = best.Remaining
		}

		buy, sell := o, best
		if o.Side == Sell {
			buy, sell = best, o
		}
		tx, err := ob.ledger.Create(buy, sell, ob.marketID, best.Price, tradeQty)
		if err != nil {
			o.State = Failed
			return err
		}
		ob.log.Debugw("trade", "market", ob.marketID, "txn", tx.ID,
			"price", tx.Price, "quantity", tx.Quantity,
			"taker", o.ID, "maker", best.ID)

		if tradeQty == best.Remaining {
			ob.book.remove(best.ID)
			best.Remaining = 0
			best.State = Filled
		} else {
			best.Remaining -= tradeQty
			best.State = PartiallyFilled
		}

		remaining -= tradeQty
		o.Remaining = remaining
		if remaining > 0 {
			o.State = PartiallyFilled
			ob.feed.Publish(MatchEvent{Type: EventPartialFill, Order: *o, Remaining: remaining})
			continue
		}
		o.State = Filled
		ob.feed.Publish(MatchEvent{Type: EventFill, Order: *o, Remaining: 0})
		return nil
	}

	// No crossing candidate left: rest with whatever remains.
	o.Remaining = remaining
	ob.book.insert(o)
	return nil
}

// processCancel removes the target order if it still rests on the book.
// Cancels race the matching loop by design: an already-resolved target makes
// the cancel a logged no-op, never an error.
func (ob *OrderBook) processCancel(o *Order) {
	target, ok := ob.book.remove(o.ID)
	if !ok {
		ob.log.Infow("cancel_noop", "market", ob.marketID, "order", o.ID)
		return
	}
	target.State = Cancelled
	ob.log.Debugw("cancelled", "market", ob.marketID, "order", target.ID, "remaining", target.Remaining)
	ob.feed.Publish(MatchEvent{Type: EventCancel, Order: *target, Remaining: target.Remaining})
}

// Snapshot returns at most depth entries per side, best-first.
// depth < 0 returns both sides in full.
func (ob *OrderBook) Snapshot(depth int) BookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.book.snapshot(ob.symbol, depth)
}

// BestBid returns the highest bid price, 0 when there are no bids.
func (ob *OrderBook) BestBid() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.book.bestBidPrice()
}

// BestAsk returns the lowest ask price, 0 when there are no asks.
func (ob *OrderBook) BestAsk() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.book.bestAskPrice()
}

// MidPrice returns the bid/ask midpoint, falling back to the non-empty side,
// 0 when the book is empty.
func (ob *OrderBook) MidPrice() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	bid, ask := ob.book.bestBidPrice(), ob.book.bestAskPrice()
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case ask > 0:
		return ask
	default:
		return bid
	}
}

// Spread returns ask minus bid, 0 unless both sides are populated.
func (ob *OrderBook) Spread() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	bid, ask := ob.book.bestBidPrice(), ob.book.bestAskPrice()
	if bid > 0 && ask > 0 {
		return ask - bid
	}
	return 0
}

// Depth returns the number of resting orders per side.
func (ob *OrderBook) Depth() (bids, asks int) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.book.bids.Len(), ob.book.asks.Len()
}

func (ob *OrderBook) Symbol() string { return ob.symbol }
func (ob *OrderBook) MarketID() int  { return ob.marketID }
