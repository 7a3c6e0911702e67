package transport

import (
	"context"
	"sync"
)

// Hub is the in-process client broker: it tracks currently-open foreground
// router instances and broadcasts route messages to all of them. Zero, one,
// or many recipients are all valid.
//
// When no router is open, OpenWindow records a pending route that the next
// router picks up on startup (TakePending), mirroring the "open a new
// application window" path.
type Hub struct {
	mu      sync.Mutex
	clients map[int]chan RouteMessage
	nextID  int
	pending *RouteMessage
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int]chan RouteMessage)}
}

// Register adds a router instance and returns its message channel plus an
// unregister func. The channel is buffered; a slow router drops messages
// rather than blocking the broker.
func (h *Hub) Register() (<-chan RouteMessage, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan RouteMessage, 8)
	h.clients[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(c)
		}
	}
}

// Broadcast sends msg to every registered router and returns the number of
// instances that were reachable.
func (h *Hub) Broadcast(_ context.Context, msg RouteMessage) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ch := range h.clients {
		select {
		case ch <- msg:
			n++
		default:
			// Slow consumer; the router is idempotent and a later duplicate
			// will route it, so dropping is acceptable here.
		}
	}
	return n, nil
}

// OpenWindow stages msg for the next router that starts. Only the latest
// pending route is kept.
func (h *Hub) OpenWindow(_ context.Context, msg RouteMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = &msg
	return nil
}

// TakePending returns and clears the staged route, if any.
func (h *Hub) TakePending() (RouteMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return RouteMessage{}, false
	}
	m := *h.pending
	h.pending = nil
	return m, true
}

// Clients returns the number of currently-open router instances.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
