package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/lifecycle"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Message is a client request
type Message struct {
	Type string `json:"type"`
}

// Handler streams lifecycle events to WebSocket clients
type Handler struct {
	manager  *lifecycle.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *lifecycle.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		manager: manager,
		metrics: metrics,
		logger:  logging.OrNop(logger).Named("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is enforced by the CORS middleware
			},
		},
	}
}

// HandleConnection upgrades the request and forwards every lifecycle event
// until the client goes away or the manager closes
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	events, unsubscribe := h.manager.Subscribe()
	defer unsubscribe()

	profileID := ""
	if loader := h.manager.Loader(); loader != nil {
		profileID = loader.Description().ID
	}
	if err := h.send(conn, "system", gin.H{
		"type":      "system",
		"message":   "connected",
		"profileId": profileID,
	}); err != nil {
		return
	}

	replies := make(chan string, 1)
	done := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	go h.readLoop(conn, replies, done, quit)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.send(conn, string(ev.Type), ev); err != nil {
				return
			}
		case kind := <-replies:
			var err error
			switch kind {
			case "ping":
				err = h.send(conn, "pong", gin.H{"type": "pong", "timestamp": time.Now().Unix()})
			default:
				err = h.send(conn, "error", gin.H{"type": "error", "message": "unknown message type: " + kind})
			}
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// readLoop owns all reads on conn; replies are written by the caller
func (h *Handler) readLoop(conn *websocket.Conn, replies chan<- string, done, quit chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", msg.Type)
		select {
		case replies <- msg.Type:
		case <-quit:
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, kind string, data interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(data); err != nil {
		h.logger.Debug("WebSocket write failed", zap.Error(err))
		return err
	}
	h.metrics.RecordWSMessage("out", kind)
	return nil
}
