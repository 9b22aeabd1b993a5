package exchange

import (
	"math/rand"
	"time"
)

// Strategy synthesizes one order per wake of its agent. OnEvent is a pure
// extension point: the engine feeds back match events already filtered to
// the agent's own orders, and the base policies ignore them.
type Strategy interface {
	Quote(now time.Time) (*Order, error)
	OnEvent(ev MatchEvent)
}

func newRng(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomUniform draws a uniform side, a price uniform over
// [minPrice, maxPrice) stepped by tickSize, and a quantity uniform over
// [minQuantity, maxQuantity].
type RandomUniform struct {
	marketID int
	agentID  int
	minPrice float64
	maxPrice float64
	tickSize float64
	minQty   float64
	maxQty   float64
	rng      *rand.Rand
}

// NewRandomUniform builds the policy. seed 0 means time-seeded.
func NewRandomUniform(marketID, agentID int, minPrice, maxPrice, tickSize, minQty, maxQty float64, seed int64) *RandomUniform {
	return &RandomUniform{
		marketID: marketID,
		agentID:  agentID,
		minPrice: minPrice,
		maxPrice: maxPrice,
		tickSize: tickSize,
		minQty:   minQty,
		maxQty:   maxQty,
		rng:      newRng(seed),
	}
}

func (s *RandomUniform) Quote(now time.Time) (*Order, error) {
	side := Buy
	if s.rng.Intn(2) == 1 {
		side = Sell
	}
	steps := int((s.maxPrice - s.minPrice) / s.tickSize)
	if steps < 1 {
		steps = 1
	}
	price := s.minPrice + s.tickSize*float64(s.rng.Intn(steps))
	qty := s.minQty + s.rng.Float64()*(s.maxQty-s.minQty)
	return NewOrder(s.marketID, s.agentID, side, price, qty, now)
}

func (s *RandomUniform) OnEvent(MatchEvent) {}

// minWalkPrice floors the RandomNormal walk. Without it a drift to zero
// collapses the volatility term and the producer can never recover.
const minWalkPrice = 0.01

// RandomNormal draws a uniform side and a price from
// Normal(lastPrice, 0.1*lastPrice), floored at minWalkPrice; the drawn
// price becomes the new lastPrice, so the quote series is a random walk
// carried across wakes.
type RandomNormal struct {
	marketID  int
	agentID   int
	lastPrice float64
	minQty    float64
	maxQty    float64
	rng       *rand.Rand
}

// NewRandomNormal builds the policy around initialPrice. seed 0 means
// time-seeded.
func NewRandomNormal(marketID, agentID int, initialPrice, minQty, maxQty float64, seed int64) *RandomNormal {
	return &RandomNormal{
		marketID:  marketID,
		agentID:   agentID,
		lastPrice: initialPrice,
		minQty:    minQty,
		maxQty:    maxQty,
		rng:       newRng(seed),
	}
}

func (s *RandomNormal) Quote(now time.Time) (*Order, error) {
	side := Buy
	if s.rng.Intn(2) == 1 {
		side = Sell
	}
	price := s.rng.NormFloat64()*(0.1*s.lastPrice) + s.lastPrice
	if price < minWalkPrice {
		price = minWalkPrice
	}
	s.lastPrice = price
	qty := s.minQty + s.rng.Float64()*(s.maxQty-s.minQty)
	return NewOrder(s.marketID, s.agentID, side, price, qty, now)
}

func (s *RandomNormal) OnEvent(MatchEvent) {}

// LastPrice exposes the walk state, mainly for inspection and tests.
func (s *RandomNormal) LastPrice() float64 { return s.lastPrice }
