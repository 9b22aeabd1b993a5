package exchange

import (
	"time"

	"github.com/google/btree"
)

// BookEntry is one resting order as exposed by orderbook snapshots.
type BookEntry struct {
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
	ID        int64     `json:"id"`
	AgentID   int       `json:"agentId"`
}

// BookSnapshot is the depth-capped view of one market's resting orders,
// bids best-first (price descending), asks best-first (price ascending).
type BookSnapshot struct {
	Symbol string      `json:"symbol"`
	Bids   []BookEntry `json:"bids"`
	Asks   []BookEntry `json:"asks"`
}

// bidLess orders the bid side best-first: price descending, ties broken by
// earlier timestamp, then lower id. Min() is the best bid.
func bidLess(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// askLess orders the ask side best-first: price ascending, same tie break.
func askLess(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// book holds the resting orders of one market: two B-trees in price-time
// priority order plus an id index for cancels. Only Open/PartiallyFilled
// orders live here, at most one per id. Mutated exclusively by the market's
// OrderBook consumer; the tree keys (price, timestamp, id) never change
// after insertion, so in-place Remaining updates are safe.
type book struct {
	bids  *btree.BTreeG[*Order]
	asks  *btree.BTreeG[*Order]
	index map[int64]*Order
}

func newBook() *book {
	const degree = 32
	return &book{
		bids:  btree.NewG(degree, bidLess),
		asks:  btree.NewG(degree, askLess),
		index: make(map[int64]*Order),
	}
}

func (b *book) side(s Side) *btree.BTreeG[*Order] {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

func (b *book) insert(o *Order) {
	b.side(o.Side).ReplaceOrInsert(o)
	b.index[o.ID] = o
}

// remove deletes an order by id from whichever side holds it.
func (b *book) remove(id int64) (*Order, bool) {
	o, ok := b.index[id]
	if !ok {
		return nil, false
	}
	delete(b.index, id)
	b.side(o.Side).Delete(o)
	return o, true
}

// bestOpposite returns the best-priority resting order on the side opposite
// to taker, skipping orders from excludeAgent (self-trade prevention).
// A skipped same-agent order shields nothing: the walk continues to the
// next-best candidate.
func (b *book) bestOpposite(taker Side, excludeAgent int) *Order {
	var best *Order
	b.side(-taker).Ascend(func(o *Order) bool {
		if o.AgentID == excludeAgent {
			return true
		}
		best = o
		return false
	})
	return best
}

// entries collects up to depth entries from tree in priority order;
// depth < 0 returns the whole side.
func entries(tree *btree.BTreeG[*Order], depth int) []BookEntry {
	if depth == 0 {
		return []BookEntry{}
	}
	out := make([]BookEntry, 0)
	tree.Ascend(func(o *Order) bool {
		out = append(out, BookEntry{
			Price:     o.Price,
			Quantity:  o.Remaining,
			Timestamp: o.Timestamp,
			ID:        o.ID,
			AgentID:   o.AgentID,
		})
		return depth < 0 || len(out) < depth
	})
	return out
}

func (b *book) snapshot(symbol string, depth int) BookSnapshot {
	return BookSnapshot{
		Symbol: symbol,
		Bids:   entries(b.bids, depth),
		Asks:   entries(b.asks, depth),
	}
}

// bestBidPrice returns the highest bid price, 0 when the side is empty.
func (b *book) bestBidPrice() float64 {
	if o, ok := b.bids.Min(); ok {
		return o.Price
	}
	return 0
}

// bestAskPrice returns the lowest ask price, 0 when the side is empty.
func (b *book) bestAskPrice() float64 {
	if o, ok := b.asks.Min(); ok {
		return o.Price
	}
	return 0
}
