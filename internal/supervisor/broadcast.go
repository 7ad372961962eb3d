package supervisor

import (
	"sync"
	"sync/atomic"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/pkg/config"
)

// hub fans newly produced chunks out to the live subscribers of one process
// id. It is independent of the output buffers: a slow subscriber can lose
// chunks (per the configured overflow policy) without ever affecting the
// pumps or the polling path. Subscriptions survive restarts; they are keyed
// by process id, not by generation.
type hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	depth  int
	policy config.OverflowPolicy
}

func newHub(depth int, policy config.OverflowPolicy) *hub {
	return &hub{
		subs:   make(map[*Subscription]struct{}),
		depth:  depth,
		policy: policy,
	}
}

// Subscription delivers live output chunks over C. Delivery starts with the
// first chunk appended after Subscribe; history is only available through
// ReadOutput. Done is closed when the subscription ends, either by Cancel
// or because the disconnect overflow policy dropped the subscriber.
type Subscription struct {
	hub     *hub
	ch      chan domain.Chunk
	done    chan struct{}
	once    sync.Once
	stream  domain.Stream // empty means both streams
	dropped atomic.Uint64
}

func (s *Subscription) C() <-chan domain.Chunk { return s.ch }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped reports how many chunks were discarded for this subscriber under
// the drop_oldest policy.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Cancel removes the subscription. Safe to call at any time, including
// concurrently with delivery, and safe to call more than once. Chunks
// already queued remain readable from C.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
}

func (h *hub) subscribe(stream domain.Stream) *Subscription {
	sub := &Subscription{
		hub:    h,
		ch:     make(chan domain.Chunk, h.depth),
		done:   make(chan struct{}),
		stream: stream,
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()

	sub.once.Do(func() { close(sub.done) })
}

// publish delivers one chunk to every matching subscriber without ever
// blocking. Queue overflow is resolved per policy: drop_oldest discards the
// subscriber's oldest queued chunk to make room, disconnect ends the
// subscription.
func (h *hub) publish(chunk domain.Chunk) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if sub.stream != "" && sub.stream != chunk.Stream {
			continue
		}

		select {
		case sub.ch <- chunk:
			continue
		default:
		}

		switch h.policy {
		case config.OverflowDisconnect:
			delete(h.subs, sub)
			sub.once.Do(func() { close(sub.done) })
		default: // drop_oldest
			select {
			case <-sub.ch:
				sub.dropped.Add(1)
			default:
			}
			select {
			case sub.ch <- chunk:
			default:
				sub.dropped.Add(1)
			}
		}
	}
}

func (h *hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
