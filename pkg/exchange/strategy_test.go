package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomUniformQuoteBounds(t *testing.T) {
	s := NewRandomUniform(1, 7, 100, 150, 1, 10, 25, 42)
	now := time.Now()

	for i := 0; i < 500; i++ {
		o, err := s.Quote(now)
		require.NoError(t, err)
		assert.Equal(t, 1, o.MarketID)
		assert.Equal(t, 7, o.AgentID)
		assert.True(t, o.Side == Buy || o.Side == Sell)
		assert.GreaterOrEqual(t, o.Price, 100.0)
		assert.Less(t, o.Price, 150.0)
		assert.GreaterOrEqual(t, o.Quantity, 10.0)
		assert.LessOrEqual(t, o.Quantity, 25.0)
		// Prices land on the tick grid.
		_, frac := mod(o.Price-100.0, 1.0)
		assert.Equal(t, 0.0, frac)
	}
}

func mod(x, step float64) (int, float64) {
	n := int(x / step)
	return n, x - float64(n)*step
}

func TestRandomUniformSeedDeterminism(t *testing.T) {
	now := time.Now()
	a := NewRandomUniform(1, 7, 100, 150, 1, 10, 25, 7)
	b := NewRandomUniform(1, 7, 100, 150, 1, 10, 25, 7)

	for i := 0; i < 50; i++ {
		oa, err := a.Quote(now)
		require.NoError(t, err)
		ob, err := b.Quote(now)
		require.NoError(t, err)
		assert.Equal(t, oa.Side, ob.Side)
		assert.Equal(t, oa.Price, ob.Price)
		assert.Equal(t, oa.Quantity, ob.Quantity)
	}
}

func TestRandomNormalWalk(t *testing.T) {
	s := NewRandomNormal(1, 7, 125, 10, 25, 42)
	now := time.Now()

	assert.Equal(t, 125.0, s.LastPrice())
	prev := s.LastPrice()
	moved := false
	for i := 0; i < 20; i++ {
		o, err := s.Quote(now)
		require.NoError(t, err)
		assert.Equal(t, o.Price, s.LastPrice(), "walk carries the drawn price")
		if s.LastPrice() != prev {
			moved = true
		}
		prev = s.LastPrice()
	}
	assert.True(t, moved)
}

func TestRandomNormalWalkFloor(t *testing.T) {
	// Start the walk right at its floor: the volatility term is tiny, and a
	// collapsed walk would starve the producer with invalid draws forever.
	// The floor keeps every quote valid and recoverable.
	s := NewRandomNormal(1, 7, 0.01, 10, 25, 42)
	now := time.Now()

	for i := 0; i < 1000; i++ {
		o, err := s.Quote(now)
		require.NoError(t, err)
		assert.Greater(t, o.Price, 0.0)
		assert.GreaterOrEqual(t, s.LastPrice(), 0.01, "walk never drops below its floor")
	}
}
