package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/reigh-app/reigh-api/internal/platform/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
)

// Subscriber hands out per-project event streams.
type Subscriber interface {
	Subscribe(projectID uuid.UUID) (<-chan []byte, func())
}

// WebSocketHandler streams TASK_CREATED and TASK_UPDATED events for one
// project to a connected client.
type WebSocketHandler struct {
	subscriber Subscriber
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewWebSocketHandler creates a WebSocketHandler. Any origin is accepted;
// the stream carries no credentials.
func NewWebSocketHandler(subscriber Subscriber, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "ws_handler")),
	}
}

// ServeHTTP handles GET /ws?projectId=...
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	projectID, err := getQueryUUID(r, "projectId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug("websocket upgrade failed", "error", err)
		return
	}

	events, unsubscribe := h.subscriber.Subscribe(projectID)
	log = log.With(slog.String("project_id", projectID.String()))
	log.Debug("websocket client connected")

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, events, done, log)

	unsubscribe()
	_ = conn.Close()
	log.Debug("websocket client disconnected")
}

// readPump discards client messages and keeps the read deadline moving on
// pongs. It closes done when the client goes away.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the connection's only writer.
func (h *WebSocketHandler) writePump(
	conn *websocket.Conn,
	events <-chan []byte,
	done <-chan struct{},
	log *slog.Logger,
) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
