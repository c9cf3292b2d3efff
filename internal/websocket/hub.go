package websocket

import (
	"sync"

	"github.com/pictallion/pictallion_agent/internal/upload"
	"github.com/rs/zerolog/log"
)

// Hub fans engine progress out to every connected UI client. There is no
// per-topic subscription: every client sees the whole upload queue.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *ProgressMessage
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *ProgressMessage, 256),
	}
}

// Bind subscribes the hub to the engine. Every engine notification becomes
// one broadcast; the entry list is read back from the engine, which is safe
// because subscriber callbacks run outside the engine lock.
func (h *Hub) Bind(engine *upload.Engine) func() {
	return engine.Subscribe(func(snap upload.Snapshot) {
		h.BroadcastProgress(snap, engine.GetEntries())
	})
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastProgress(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	log.Info().
		Str("remoteAddr", client.remoteAddr).
		Int("totalClients", len(h.clients)).
		Msg("[WS] Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)

	log.Info().
		Str("remoteAddr", client.remoteAddr).
		Int("totalClients", len(h.clients)).
		Msg("[WS] Client unregistered")
}

func (h *Hub) broadcastProgress(msg *ProgressMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			// Client buffer full, skip this message
			log.Warn().
				Str("remoteAddr", client.remoteAddr).
				Msg("[WS] Client send buffer full, dropping progress message")
		}
	}

	log.Debug().
		Int("recipients", len(clients)).
		Int("overallProgress", msg.Snapshot.OverallProgress).
		Msg("[WS] Progress broadcast complete")
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastProgress queues a progress message for all connected clients.
// When the hub buffer is full the oldest update is superseded anyway, so the
// message is dropped rather than blocking the engine notification path.
func (h *Hub) BroadcastProgress(snapshot upload.Snapshot, entries []upload.Entry) {
	msg := &ProgressMessage{
		Type:     MessageTypeProgress,
		Snapshot: snapshot,
		Entries:  entries,
	}

	select {
	case h.broadcast <- msg:
	default:
		log.Warn().Msg("[WS] Broadcast buffer full, dropping progress message")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
