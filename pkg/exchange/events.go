package exchange

import "sync"

type EventType int8

const (
	EventFill EventType = iota
	EventPartialFill
	EventCancel
)

func (t EventType) String() string {
	switch t {
	case EventFill:
		return "fill"
	case EventPartialFill:
		return "partial_fill"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// MatchEvent is a best-effort notification emitted by the matching engine.
// Order is a value snapshot taken at emission time; Remaining mirrors
// Order.Remaining for convenience.
type MatchEvent struct {
	Type      EventType
	Order     Order
	Remaining float64
}

// Feed fans match events out to subscribers over buffered channels. Publish
// never blocks the matching engine: a subscriber that falls behind misses
// events. Events are notifications, not part of the match's correctness.
type Feed struct {
	mu     sync.RWMutex
	subs   []chan MatchEvent
	closed bool
}

func NewFeed() *Feed { return &Feed{} }

// Subscribe registers a new subscriber with the given channel buffer.
// The returned channel is closed when the feed closes.
func (f *Feed) Subscribe(buffer int) <-chan MatchEvent {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan MatchEvent, buffer)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.subs = append(f.subs, ch)
	return ch
}

// Publish delivers ev to every subscriber that has buffer space.
func (f *Feed) Publish(ev MatchEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full, drop.
		}
	}
}

// Close closes all subscriber channels. Publish after Close is a no-op.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}
