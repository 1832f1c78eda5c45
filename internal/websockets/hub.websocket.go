package websockets

import (
	"sync"

	"babcia/internal/events"
)

const (
	STATUS_UNAUTHENTICATED = iota
	STATUS_AUTHENTICATED
)

type Hub struct {
	broadcast chan events.Event
	clients   map[string]*Client
	mutex     sync.RWMutex
	quit      chan struct{}
	done      chan struct{}
	once      sync.Once
	closed    bool
}

func newHub() *Hub {
	return &Hub{
		broadcast: make(chan events.Event, BROADCAST_BUFFER),
		clients:   make(map[string]*Client),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (h *Hub) run(m *Manager) {
	defer close(h.done)
	for {
		select {
		case event := <-h.broadcast:
			h.broadcastEvent(event, m)
		case <-h.quit:
			return
		}
	}
}

// stop ends the hub loop and closes every client queue
func (h *Hub) stop() {
	h.once.Do(func() {
		close(h.quit)
		<-h.done

		h.mutex.Lock()
		defer h.mutex.Unlock()
		h.closed = true
		for id, client := range h.clients {
			delete(h.clients, id)
			close(client.send)
		}
	})
}

func (h *Hub) add(client *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return false
	}
	h.clients[client.ID] = client
	return true
}

// remove is safe to call more than once per client
func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.send)
}

func (h *Hub) direct(client *Client, event events.Event) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	select {
	case client.send <- event:
		return true
	default:
		return false
	}
}

func (h *Hub) count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastEvent(event events.Event, m *Manager) {
	log := m.log.Function("broadcastEvent")

	h.mutex.RLock()
	var slow []*Client
	sent := 0
	for _, client := range h.clients {
		if client.Status() != STATUS_AUTHENTICATED {
			continue
		}
		select {
		case client.send <- event:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		log.Warn("Client too slow, disconnecting", "clientID", client.ID)
		h.remove(client)
	}

	log.Debug("Broadcast complete", "eventID", event.ID, "type", event.Type, "sentTo", sent)
}
