package presentation

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	maxClients   = 256
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

type frame struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}

// sessionParam is the query parameter naming the visitor session of a display client.
const sessionParam = "session"

type clientWriter struct {
	conn      *websocket.Conn
	sessionID string
	sendCh    chan []byte
	done      chan struct{}
	once      sync.Once
}

func newClientWriter(conn *websocket.Conn, sessionID string) *clientWriter {
	cw := &clientWriter{
		conn:      conn,
		sessionID: sessionID,
		sendCh:    make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg := <-cw.sendCh:
			cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.stop()
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) owns(sessionID string) bool {
	return sessionID != "" && cw.sessionID == sessionID
}

func (cw *clientWriter) stop() {
	cw.once.Do(func() {
		close(cw.done)
		cw.conn.Close()
	})
}

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithHubLogger overrides the hub logger.
func WithHubLogger(logger zerolog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// Hub is a websocket display surface. It is available while at least one client is connected,
// and replays the visible notification to clients joining mid-display. A client connecting with
// ?session=<id> never receives notifications for actions logged under that session.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu             sync.Mutex
	clients        map[*websocket.Conn]*clientWriter
	current        []byte
	currentSession string
	closed         bool
}

// NewHub constructs a Hub accepting upgrades from allowedOrigin ("*" accepts any origin).
func NewHub(allowedOrigin string, opts ...HubOption) *Hub {
	h := &Hub{
		logger:  zerolog.Nop(),
		clients: make(map[*websocket.Conn]*clientWriter),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and registers the connection as a display client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := h.closed || len(h.clients) >= maxClients
	h.mu.Unlock()
	if full {
		http.Error(w, "display surface unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	if !h.register(conn, r.URL.Query().Get(sessionParam)) {
		conn.Close()
		return
	}

	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(conn *websocket.Conn, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	cw := newClientWriter(conn, sessionID)
	h.clients[conn] = cw
	if h.current != nil && !cw.owns(h.currentSession) {
		cw.sendCh <- h.current
	}
	h.logger.Debug().Int("clients", len(h.clients)).Msg("display client connected")
	return true
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cw, ok := h.clients[conn]
	if !ok {
		return
	}
	cw.stop()
	delete(h.clients, conn)
	h.logger.Debug().Int("clients", len(h.clients)).Msg("display client disconnected")
}

// Available reports whether any client is connected.
func (h *Hub) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed && len(h.clients) > 0
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Show broadcasts n to every client except those of the visitor who performed the action.
func (h *Hub) Show(n Notification) {
	data, err := json.Marshal(frame{Type: "show", Notification: &n})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal notification")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = data
	h.currentSession = n.SessionID
	h.broadcast(data, n.SessionID)
}

// Hide tells every client to hide the visible notification.
func (h *Hub) Hide() {
	data, _ := json.Marshal(frame{Type: "hide"})
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
	h.currentSession = ""
	h.broadcast(data, "")
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.current = nil
	h.currentSession = ""
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
}

// broadcast must be called with h.mu held. Clients owning skipSession are passed over; slow
// clients are disconnected.
func (h *Hub) broadcast(data []byte, skipSession string) {
	if h.closed {
		return
	}
	for conn, cw := range h.clients {
		if cw.owns(skipSession) {
			continue
		}
		select {
		case cw.sendCh <- data:
		default:
			h.logger.Warn().Msg("disconnecting slow display client")
			cw.stop()
			delete(h.clients, conn)
		}
	}
}
