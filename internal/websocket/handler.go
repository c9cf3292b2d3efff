package websocket

import (
	"github.com/fasthttp/websocket"
	"github.com/pictallion/pictallion_agent/internal/upload"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

var upgrader = websocket.FastHTTPUpgrader{
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
		// The agent listens on loopback; CORS on the REST surface is the
		// origin gate, the upgrade itself accepts any local UI window.
		return true
	},
}

type Handler struct {
	hub    *Hub
	engine *upload.Engine
}

func NewHandler(hub *Hub, engine *upload.Engine) *Handler {
	return &Handler{
		hub:    hub,
		engine: engine,
	}
}

// HandleFastHTTP upgrades the connection and immediately pushes the current
// queue state, so a freshly attached UI never renders from nothing.
func (h *Handler) HandleFastHTTP(ctx *fasthttp.RequestCtx) {
	remoteAddr := ctx.RemoteAddr().String()

	err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		client := NewClient(h.hub, conn, remoteAddr)
		h.hub.Register(client)

		client.send <- &OutgoingMessage{Type: MessageTypeConnected}
		client.send <- &ProgressMessage{
			Type:     MessageTypeProgress,
			Snapshot: h.engine.Snapshot(),
			Entries:  h.engine.GetEntries(),
		}

		log.Info().
			Str("remoteAddr", remoteAddr).
			Msg("[WS] Client connected")

		// Start read and write pumps
		go client.WritePump()
		client.ReadPump() // Blocks until disconnect
	})

	if err != nil {
		log.Error().Err(err).Msg("[WS] Failed to upgrade connection")
		return
	}
}
