package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled by the outer middleware
		return true
	},
}

// Hub fans order events out to connected WebSocket clients. It implements
// engine.ResultSink, so wiring it into the transaction handler streams every
// OrderEvent to subscribers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	logger *zap.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
}

// Run is the hub's main loop; start it on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client connected", zap.Int("total", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			// write lock: dropping a slow client mutates the map
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// client can't keep up, drop it
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// OrderEvent satisfies engine.ResultSink. Fire-and-forget: a full broadcast
// buffer drops the message rather than blocking the caller.
func (h *Hub) OrderEvent(event *orders.OrderEvent) {
	payload, err := json.Marshal(orderEventMessage{
		Type:         "orderEvent",
		OrderID:      event.OrderID,
		Symbol:       event.Symbol,
		Status:       event.Status,
		FillPrice:    event.FillPrice.String(),
		FillQuantity: event.FillQuantity,
		Message:      event.Message,
		Time:         event.Time,
	})
	if err != nil {
		h.logger.Error("ws marshal failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

type orderEventMessage struct {
	Type         string             `json:"type"`
	OrderID      int64              `json:"orderId"`
	Symbol       string             `json:"symbol"`
	Status       orders.OrderStatus `json:"status"`
	FillPrice    string             `json:"fillPrice"`
	FillQuantity int64              `json:"fillQuantity"`
	Message      string             `json:"message,omitempty"`
	Time         time.Time          `json:"time"`
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
