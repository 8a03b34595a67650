// internal/monitor/websocket_handler.go
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a connected WebSocket client
type Client struct {
	ID          string
	Connection  *websocket.Conn
	Send        chan []byte
	RemoteAddr  string
	ConnectedAt time.Time
}

// WebSocketHandler streams link events to WebSocket clients
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	eventBus *EventBus
	clients  map[string]*Client
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewWebSocketHandler creates a new WebSocket handler fed by the bus
func NewWebSocketHandler(eventBus *EventBus, logger *zap.Logger) *WebSocketHandler {
	handler := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The monitor binds to loopback by default; origin
				// enforcement belongs to the CORS layer.
				return true
			},
		},
		eventBus: eventBus,
		clients:  make(map[string]*Client),
		logger:   logger.With(zap.String("component", "websocket-handler")),
	}

	go handler.broadcastLoop()

	return handler
}

// HandleEvents upgrades the connection and streams link events
func (h *WebSocketHandler) HandleEvents(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 64),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.readPump(client)
	go h.writePump(client)
}

// broadcastLoop forwards bus events to every connected client
func (h *WebSocketHandler) broadcastLoop() {
	for event := range h.eventBus.Subscribe() {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}

		h.mutex.RLock()
		for _, client := range h.clients {
			select {
			case client.Send <- payload:
			default:
				// Client is slow, skip this event for it
			}
		}
		h.mutex.RUnlock()
	}
}

// readPump drains client messages until the connection closes
func (h *WebSocketHandler) readPump(client *Client) {
	defer h.unregister(client)

	client.Connection.SetReadLimit(512)
	for {
		if _, _, err := client.Connection.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// writePump writes queued events and keepalive pings to the client
func (h *WebSocketHandler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case payload, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Connection.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// register adds a client
func (h *WebSocketHandler) register(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[client.ID] = client
}

// unregister removes a client and closes its send queue
func (h *WebSocketHandler) unregister(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}

	h.logger.Info("WebSocket client disconnected",
		zap.String("client_id", client.ID),
	)
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
