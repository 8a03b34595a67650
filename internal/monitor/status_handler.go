// internal/monitor/status_handler.go
package monitor

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Snapshot is one observation of the link, shaped for rendering: the
// status label and indicator color are ready-made presentation hints.
type Snapshot struct {
	Status       string    `json:"status"`
	Label        string    `json:"label"`
	Color        string    `json:"color"`
	Kind         string    `json:"kind,omitempty"`
	Port         string    `json:"port,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	LastSend     time.Time `json:"last_send"`
	LastActivity time.Time `json:"last_activity"`
	Stale        bool      `json:"stale"`
}

// StatusProvider supplies link snapshots to the monitor. The provider
// is responsible for its own synchronization with the link owner.
type StatusProvider interface {
	Snapshot() Snapshot
}

// ClientCounter reports how many event-stream clients are attached.
type ClientCounter interface {
	ClientCount() int
}

// StatusHandler serves link status to HTTP clients
type StatusHandler struct {
	provider StatusProvider
	clients  ClientCounter
	logger   *zap.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(provider StatusProvider, clients ClientCounter, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		provider: provider,
		clients:  clients,
		logger:   logger.With(zap.String("component", "status-handler")),
	}
}

// GetStatus returns the current link snapshot
func (h *StatusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.provider.Snapshot())
}

// Health returns process liveness and monitor vitals
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"time":       time.Now(),
		"ws_clients": h.clients.ClientCount(),
	})
}
