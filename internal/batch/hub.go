package batch

import "sync"

const subscriberBuffer = 64

// Hub fans job events out to per-batch subscribers. Publishing never blocks:
// a subscriber that falls behind loses events and is expected to re-sync from
// the batch snapshot, which stays authoritative.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener for one batch's events. The returned cancel
// function must be called exactly once; it closes the channel.
func (h *Hub) Subscribe(batchID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[batchID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[batchID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[batchID]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, batchID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its batch, dropping it for
// any subscriber whose buffer is full.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.BatchID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
