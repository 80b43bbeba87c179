package handler

import (
	"net/http"
	"time"

	"facility-uptime-monitor/internal/events"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StreamHandler pushes device status change events to dashboards over WebSocket.
type StreamHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
}

// NewStreamHandler accepts any origin when allowedOrigins is empty.
func NewStreamHandler(hub *events.Hub, allowedOrigins []string) *StreamHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

func (h *StreamHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/stream", h.Stream)
}

func (h *StreamHandler) Stream(c *gin.Context) {
	log := logger.WithRequestID(middleware.GetRequestID(c))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := h.hub.Subscribe()
	if ch == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		return
	}
	defer h.hub.Unsubscribe(ch)

	log.Info("Stream client connected", zap.Int("clients", h.hub.Clients()))

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Info("Stream client disconnected")
			return
		}
	}
}

// readPump discards client messages and signals done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
