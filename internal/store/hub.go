package store

import "sync"

// subscriberBacklog bounds how many undelivered messages a subscriber
// may accumulate before PUBLISH starts dropping on it (§4.B: publish
// never blocks on a slow subscriber).
const subscriberBacklog = 1024

// hub is the broadcast fan-out for a single channel name: a set of
// subscriber mailboxes, each a buffered channel of raw message bytes.
type hub struct {
	mu   sync.Mutex
	subs map[uint64]chan []byte
	next uint64
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]chan []byte)}
}

// subscribe registers a new mailbox and returns its id (for later
// unsubscribe) and the channel the caller should read from.
func (h *hub) subscribe() (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	ch := make(chan []byte, subscriberBacklog)
	h.subs[id] = ch
	return id, ch
}

// unsubscribe removes a mailbox. It reports whether the hub is now
// empty, so the caller can drop the channel entry entirely (§4.B:
// channels disappear once their last subscriber leaves and reappear
// fresh on the next SUBSCRIBE).
func (h *hub) unsubscribe(id uint64) (empty bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, id)
	return len(h.subs) == 0
}

// publish delivers msg to every current subscriber without blocking.
// A subscriber whose mailbox is full is skipped — its message lags
// and is lost, rather than stalling the publisher. It returns the
// number of subscribers the channel had at the moment of publish,
// matching the wire-level PUBLISH reply regardless of how many
// actually received the message.
func (h *hub) publish(msg []byte) (subscriberCount int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			// subscriber lagging behind; drop rather than block.
		}
	}
	return len(h.subs)
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
