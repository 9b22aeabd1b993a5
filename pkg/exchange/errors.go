package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is reported synchronously to a submitter when a market's
	// inbound order queue is at capacity. The caller decides retry-or-drop.
	ErrQueueFull = errors.New("order queue full")

	// ErrUnknownAgent marks a ledger precondition violation: a matched order
	// references an agent never registered with the ledger. This is a wiring
	// defect and halts the market rather than corrupting aggregates.
	ErrUnknownAgent = errors.New("agent not registered with ledger")

	// ErrUnknownSymbol is returned by Exchange queries for symbols that have
	// no registered market.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrUnknownMarket is returned when an order references a market id that
	// is not registered with the exchange.
	ErrUnknownMarket = errors.New("unknown market")

	// ErrStopped is reported when submitting to a market that is not running.
	ErrStopped = errors.New("market stopped")
)

// ValidationError reports a malformed order at construction time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s %s", e.Field, e.Reason)
}
