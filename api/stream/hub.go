// Package stream 通过 WebSocket 推送已提交的拓扑事件
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"microgrid/domain/shared"
	"microgrid/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Message the frame pushed to subscribers
type Message struct {
	Event       string         `json:"event"`
	AggregateID string         `json:"aggregate_id"`
	OccurredOn  time.Time      `json:"occurred_on"`
	Payload     map[string]any `json:"payload,omitempty"`
}

type client struct {
	id         string
	topologyID string // 空表示接收全部拓扑
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
}

// Hub fans events out to WebSocket clients. It is an EventHandler and is
// subscribed to the in-process bus for AllEvents.
type Hub struct {
	clients  map[string]*client
	mu       sync.RWMutex
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) Name() string { return "websocket-hub" }

// Handle encodes the event once and queues it for every matching client.
// Slow clients lose frames instead of blocking the publisher.
func (h *Hub) Handle(event shared.DomainEvent) error {
	msg := Message{
		Event:       event.EventName(),
		AggregateID: event.GetAggregateID(),
		OccurredOn:  event.OccurredOn(),
	}
	if pe, ok := event.(shared.PayloadEvent); ok {
		msg.Payload = pe.Payload()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.topologyID != "" && c.topologyID != msg.AggregateID {
			continue
		}
		select {
		case c.send <- data:
		default:
			logger.Warn("WebSocket client too slow, dropping event",
				zap.String("client_id", c.id),
				zap.String("event", msg.Event),
			)
		}
	}
	return nil
}

// ServeWS upgrades the request; ?topology_id= narrows the stream to one topology
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:         uuid.New().String(),
		topologyID: c.Query("topology_id"),
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[cl.id] = cl
	h.mu.Unlock()

	logger.Debug("WebSocket client connected",
		zap.String("client_id", cl.id),
		zap.String("topology_id", cl.topologyID),
	)

	go h.readPump(cl)
	go h.writePump(cl)
}

// ClientCount number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

// readPump 只处理控制帧；客户端发来的数据被丢弃
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

var _ shared.EventHandler = (*Hub)(nil)
