package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/hub"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin during
	// development; authentication is out of scope here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSocket adapts a gorilla connection to hub.Socket. All writes come
// from the hub's single writer pump, so no write lock is needed.
type wsSocket struct {
	conn *websocket.Conn
}

func (s *wsSocket) Send(data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSocket) Ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *wsSocket) Close() error {
	return s.conn.Close()
}

// GET /v1/stream — upgrade to the event stream.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	conn := h.hub.Register(&wsSocket{conn: ws})
	go h.readPump(ws, conn)
}

// readPump drains inbound frames for one subscriber. Pongs and client
// heartbeat messages both count as liveness; a read error of any kind
// unregisters the connection.
func (h *Handler) readPump(ws *websocket.Conn, conn *hub.Conn) {
	defer h.hub.Unregister(conn)

	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		conn.Touch()
		return nil
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		conn.Touch()
	}
}
