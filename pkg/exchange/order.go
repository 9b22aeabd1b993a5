package exchange

import (
	"fmt"
	"strings"
	"time"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseSide converts the wire form ("BUY"/"SELL", case-insensitive) to a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", s)}
	}
}

type State int8

const (
	Open State = iota
	PartiallyFilled
	Filled
	Cancelled
	Failed
)

func (st State) String() string {
	switch st {
	case Open:
		return "Open"
	case PartiallyFilled:
		return "PartiallyFilled"
	case Filled:
		return "Filled"
	case Cancelled:
		return "Cancelled"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Order is a buy/sell request or a cancel request. The ID is assigned by the
// matching engine when the order is accepted, except for cancels, where ID
// carries the id of the order to cancel. After validation an order is only
// mutated by the OrderBook that owns its market: Remaining decreases
// monotonically until 0 (Filled) or the order is removed (Cancelled).
type Order struct {
	ID        int64
	MarketID  int
	AgentID   int
	Side      Side
	Price     float64
	Quantity  float64
	Remaining float64
	Timestamp time.Time
	State     State
	Cancel    bool
}

// NewOrder builds a validated limit order. Invalid input never reaches the
// engine; it is reported as a *ValidationError.
func NewOrder(marketID, agentID int, side Side, price, quantity float64, ts time.Time) (*Order, error) {
	if side != Buy && side != Sell {
		return nil, &ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if price <= 0 {
		return nil, &ValidationError{Field: "price", Reason: fmt.Sprintf("must be positive, got %v", price)}
	}
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be positive, got %v", quantity)}
	}
	return &Order{
		MarketID:  marketID,
		AgentID:   agentID,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Remaining: quantity,
		Timestamp: ts,
		State:     Open,
	}, nil
}

// NewCancel builds a cancel request targeting an existing order id.
func NewCancel(marketID, agentID int, targetID int64, ts time.Time) (*Order, error) {
	if targetID <= 0 {
		return nil, &ValidationError{Field: "orderId", Reason: "cancel requires a valid target order id"}
	}
	return &Order{
		ID:        targetID,
		MarketID:  marketID,
		AgentID:   agentID,
		Timestamp: ts,
		State:     Open,
		Cancel:    true,
	}, nil
}

func (o *Order) String() string {
	if o.Cancel {
		return fmt.Sprintf("cancel{id=%d market=%d agent=%d ts=%s}",
			o.ID, o.MarketID, o.AgentID, o.Timestamp.Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("order{id=%d market=%d agent=%d %s %v@%v remaining=%v state=%s ts=%s}",
		o.ID, o.MarketID, o.AgentID, o.Side, o.Quantity, o.Price, o.Remaining,
		o.State, o.Timestamp.Format(time.RFC3339Nano))
}
