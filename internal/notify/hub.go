package notify

import "sync"

// opsChannel is the reserved subscriber key for the operational dashboard.
const opsChannel = "__ops__"

// Hub maintains per-user subscriber channels. Channels are bounded; a full
// channel drops the event for that subscriber rather than blocking the
// publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	buffer int

	// onDrop is invoked (without the lock) once per subscriber that missed
	// an event. Wired to a metric by the bus.
	onDrop func()
}

// NewHub creates a hub whose subscriber channels buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[int]chan Event),
		buffer: buffer,
	}
}

// SetDropHandler registers a callback fired when a subscriber misses an
// event. Must be called before the hub is used.
func (h *Hub) SetDropHandler(fn func()) {
	h.onDrop = fn
}

// Subscribe opens a channel receiving events targeted at userID (plus
// broadcasts). The returned cancel func must be called to release the
// channel.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Event, h.buffer)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan Event)
	}
	h.subs[userID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if chans, ok := h.subs[userID]; ok {
			delete(chans, id)
			if len(chans) == 0 {
				delete(h.subs, userID)
			}
		}
	}
	return ch, cancel
}

// SubscribeOps opens a channel receiving operational events and broadcasts.
func (h *Hub) SubscribeOps() (<-chan Event, func()) {
	return h.Subscribe(opsChannel)
}

// Deliver pushes the event to every channel its target selects. Full
// channels are skipped. Returns the number of subscriber channels that
// received the event.
func (h *Hub) Deliver(event Event) int {
	h.mu.RLock()
	targets := h.collect(event.Target)
	h.mu.RUnlock()

	delivered := 0
	dropped := 0
	for _, ch := range targets {
		select {
		case ch <- event:
			delivered++
		default:
			dropped++
		}
	}
	if h.onDrop != nil {
		for i := 0; i < dropped; i++ {
			h.onDrop()
		}
	}
	return delivered
}

// collect resolves a target to its subscriber channels. Caller holds the
// read lock.
func (h *Hub) collect(t Target) []chan Event {
	var out []chan Event
	if t.Broadcast {
		for _, chans := range h.subs {
			for _, ch := range chans {
				out = append(out, ch)
			}
		}
		return out
	}
	seen := make(map[int]bool)
	add := func(userID string) {
		for id, ch := range h.subs[userID] {
			if !seen[id] {
				seen[id] = true
				out = append(out, ch)
			}
		}
	}
	for _, userID := range t.UserIDs {
		add(userID)
	}
	if t.Ops {
		add(opsChannel)
	}
	return out
}

// SubscriberCount reports how many channels are currently open. Used by the
// health endpoint.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, chans := range h.subs {
		n += len(chans)
	}
	return n
}
