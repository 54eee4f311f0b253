package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/protocol"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/stream"
)

// wsTransport adapts a gorilla connection to the session transport
// contract. Writes are serialized: keepalive pings, control frames, and
// audio chunks originate from different session tasks.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteControl(msg protocol.Control) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) WriteAudio(chunk []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")

		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		t.writeMu.Unlock()

		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// WSHandler upgrades HTTP requests to streaming sessions
type WSHandler struct {
	upgrader  websocket.Upgrader
	manager   *stream.Manager
	logger    *slog.Logger
	readLimit int64
}

// NewWSHandler creates the WebSocket endpoint handler. allowedOrigins
// follows the CORS configuration; "*" admits any origin. maxTextLength
// bounds inbound frame size: the largest legitimate frame carries that
// many characters of UTF-8 text plus the JSON envelope.
func NewWSHandler(manager *stream.Manager, logger *slog.Logger, allowedOrigins []string, maxTextLength int) *WSHandler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	if maxTextLength <= 0 {
		maxTextLength = 2000
	}
	// UTF-8 is at most 4 bytes per character, envelope fields add a
	// little on top
	readLimit := int64(maxTextLength)*4 + 512

	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		manager:   manager,
		logger:    logger,
		readLimit: readLimit,
	}
}

// ServeHTTP upgrades the connection, admits it into the registry, and runs
// the reception loop feeding the session's inbox. Admission rejection
// closes the socket with a try-again-later status before any session
// exists.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(h.readLimit)

	transport := newWSTransport(conn)

	session, err := h.manager.Admit(transport)
	if err != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
		return
	}

	for {
		frame, err := transport.ReadMessage()
		if err != nil {
			session.Close("client disconnected")
			return
		}
		session.Enqueue(frame)
	}
}
