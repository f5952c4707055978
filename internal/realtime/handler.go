package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/edtriage/internal/auth"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades authenticated HTTP requests to WebSocket sessions.
type Handler struct {
	hub      *Hub
	verifier *auth.Verifier
	logger   log.Logger
}

// NewHandler creates a Handler bound to the given hub and token verifier.
func NewHandler(hub *Hub, verifier *auth.Verifier, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{hub: hub, verifier: verifier, logger: logger}
}

// ServeHTTP verifies the token, upgrades the connection, registers the
// session, and starts the read/write pumps. The token is checked before the
// upgrade so an unauthenticated client never reaches the hub.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := auth.TokenFromRequest(r)
	if tokenString == "" {
		http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
		return
	}

	id, err := h.verifier.Verify(tokenString)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}

	session := &Session{
		ID:       uuid.New().String(),
		Identity: id,
		Send:     make(chan []byte, 256),
	}

	h.hub.Register(session)
	h.logger.Info(r.Context(), "websocket session opened",
		"session_id", session.ID,
		"user_id", id.UserID,
		"facility_id", id.FacilityID,
	)

	go h.writePump(session, ws)
	go h.readPump(session, ws)
}

// readPump reads messages from the connection and processes them. It owns
// session teardown.
func (h *Handler) readPump(session *Session, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(session)
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		h.hub.ProcessMessage(session, msg)
	}
}

// writePump writes messages from the Send channel to the connection.
func (h *Handler) writePump(session *Session, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range session.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}
