package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"aquant/internal/batch"
	"aquant/internal/logger"
	"aquant/internal/monitoring"
)

// WebSocketHandler streams batch job progress to subscribed clients
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	clients  map[string]*Client
	jobs     *jobStore
	mu       sync.RWMutex
	metrics  *monitoring.Metrics
}

// Client represents one WebSocket subscriber
type Client struct {
	ID      string
	JobID   string
	Conn    *websocket.Conn
	Send    chan []byte
	Handler *WebSocketHandler

	closeOnce sync.Once
}

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time time.Time   `json:"time"`
}

// NewWebSocketHandler creates the batch progress stream handler
func NewWebSocketHandler(jobs *jobStore, metrics *monitoring.Metrics) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
		jobs:    jobs,
		metrics: metrics,
	}
}

// BatchStream subscribes a connection to one job's progress events
func (h *WebSocketHandler) BatchStream(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id is required"})
		return
	}
	job, ok := h.jobs.get(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Failed to upgrade websocket connection", "error", err.Error())
		return
	}

	client := &Client{
		ID:      generateClientID(),
		JobID:   jobID,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Handler: h,
	}

	h.registerClient(client)

	go client.writePump()
	go client.readPump()

	// 订阅时先补发当前状态，再跟进增量事件
	snapshot := Message{
		Type: "connected",
		Data: job.view(),
		Time: time.Now(),
	}
	if data, err := json.Marshal(snapshot); err == nil {
		client.trySend(data)
	}
}

// PublishProgress pushes one progress event to the job's subscribers
func (h *WebSocketHandler) PublishProgress(ev batch.Progress) {
	msg := Message{Type: "progress", Data: ev, Time: time.Now()}
	h.publish(ev.JobID.String(), msg)
}

// PublishDone notifies subscribers that the job finished
func (h *WebSocketHandler) PublishDone(jobID string, job *jobView) {
	msg := Message{Type: "done", Data: job, Time: time.Now()}
	h.publish(jobID, msg)
}

func (h *WebSocketHandler) publish(jobID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Warn("Failed to marshal websocket message", "error", err.Error())
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		if client.JobID == jobID {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
}

func (h *WebSocketHandler) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	if h.metrics != nil {
		h.metrics.WSConnected()
	}
}

func (h *WebSocketHandler) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	client.closeOnce.Do(func() { close(client.Send) })
	if h.metrics != nil {
		h.metrics.WSDisconnected()
	}
}

// trySend drops the connection when its buffer is full rather than block
// a publishing worker.
func (c *Client) trySend(data []byte) {
	select {
	case c.Send <- data:
	default:
		logger.Warn("WebSocket client send buffer full, closing", "client_id", c.ID)
		c.Conn.Close()
	}
}

// writePump pumps messages from the send channel to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection; clients only listen on this stream
func (c *Client) readPump() {
	defer func() {
		c.Handler.unregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", "client_id", c.ID, "error", err.Error())
			}
			break
		}
	}
}

// generateClientID generates a unique client ID
func generateClientID() string {
	return fmt.Sprintf("client_%d", time.Now().UnixNano())
}
