package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"

	"github.com/pders01/repowatch/internal/tracker"
)

const (
	writeWait   = 5 * time.Second
	queueLength = 16
)

// hub fans status-changed events out to websocket clients. publish never
// blocks the emitter; when the queue is full the event is dropped, which is
// harmless because clients re-fetch the whole status anyway.
type hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	queue     chan tracker.Event
	done      chan struct{}
	closeOnce sync.Once
	wg        conc.WaitGroup
}

func newHub(logger *slog.Logger) *hub {
	h := &hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// the API binds to loopback and serves local tools only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		queue:   make(chan tracker.Event, queueLength),
		done:    make(chan struct{}),
	}
	h.wg.Go(h.run)
	return h
}

func (h *hub) publish(ev tracker.Event) {
	select {
	case h.queue <- ev:
	case <-h.done:
	default:
		h.logger.Warn("event queue full, dropping notification")
	}
}

func (h *hub) run() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.queue:
			h.broadcast(ev)
		}
	}
}

func (h *hub) broadcast(ev tracker.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("dropping websocket client", "remote", conn.RemoteAddr().String(), "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	})
}

// events upgrades the request and keeps the connection registered until
// the client goes away. Incoming messages are ignored.
func (s *Server) events(c *gin.Context) {
	conn, err := s.hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	s.hub.add(conn)
	s.logger.Debug("websocket client connected", "remote", conn.RemoteAddr().String())
	defer s.hub.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
