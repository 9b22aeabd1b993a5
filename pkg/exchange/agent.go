package exchange

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"synthex/pkg/util"
)

// Agent is an independent order-flow producer: it wakes on a configurable
// interval, asks its strategy for an order, and submits it to the market's
// inbound channel. A full queue keeps the order pending for the next wake.
// Match events arriving on its subscription are filtered to its own id and
// handed to the strategy. A bad tick is logged, never fatal.
type Agent struct {
	id       int
	strategy Strategy
	book     *OrderBook
	events   <-chan MatchEvent
	interval time.Duration
	clock    util.Clock
	log      *zap.SugaredLogger

	pending *Order
}

func NewAgent(id int, strategy Strategy, book *OrderBook, events <-chan MatchEvent, interval time.Duration, clock util.Clock, log *zap.SugaredLogger) *Agent {
	return &Agent{
		id:       id,
		strategy: strategy,
		book:     book,
		events:   events,
		interval: interval,
		clock:    clock,
		log:      log,
	}
}

func (a *Agent) ID() int { return a.id }

// Run produces orders until ctx is cancelled. The owner joins the actor by
// waiting for Run to return.
func (a *Agent) Run(ctx context.Context) {
	a.log.Debugw("agent_started", "agent", a.id, "interval", a.interval)
	for {
		select {
		case <-ctx.Done():
			a.log.Debugw("agent_stopped", "agent", a.id)
			return
		case ev, ok := <-a.events:
			if !ok {
				a.events = nil
				continue
			}
			if ev.Order.AgentID != a.id {
				continue
			}
			a.strategy.OnEvent(ev)
		case <-a.clock.After(a.interval):
			a.tick()
		}
	}
}

// tick performs one wake: quote (or reuse the pending order) and submit.
func (a *Agent) tick() {
	o := a.pending
	if o == nil {
		var err error
		o, err = a.strategy.Quote(a.clock.Now())
		if err != nil {
			a.log.Warnw("quote_failed", "agent", a.id, "err", err)
			return
		}
	}
	switch err := a.book.Submit(o); {
	case err == nil:
		a.pending = nil
	case errors.Is(err, ErrQueueFull):
		// Retry the same order on the next wake rather than dropping it.
		a.pending = o
		a.log.Debugw("queue_full", "agent", a.id, "order", o.String())
	default:
		a.pending = nil
		a.log.Warnw("submit_failed", "agent", a.id, "err", err)
	}
}
