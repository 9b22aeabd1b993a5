package exchange

import "sync/atomic"

// Sequence hands out monotonically increasing ids starting at 1. Each market
// owns its own order and transaction sequences, so independent markets (and
// tests) never share counters.
type Sequence struct {
	n atomic.Int64
}

func (s *Sequence) Next() int64 { return s.n.Add(1) }

// Current returns the last id handed out, 0 if none.
func (s *Sequence) Current() int64 { return s.n.Load() }
