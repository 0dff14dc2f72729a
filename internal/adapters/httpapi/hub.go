package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/predmarket/internal/domain"
)

const (
	// writeWait es el máximo que esperamos por un write al socket.
	writeWait = 10 * time.Second

	// pongWait es el máximo sin pong del cliente antes de cortar.
	pongWait = 60 * time.Second

	// pingPeriod debe ser menor que pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufferSize es el buffer de salida por cliente.
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient es una conexión WebSocket suscrita al feed de trades.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub difunde los trades ejecutados a los clientes WebSocket conectados.
// Implementa ports.TradeFeed: el engine publica y el hub reparte.
// Un cliente lento pierde mensajes en vez de frenar al resto.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	logger  *slog.Logger
}

// NewHub crea un hub sin clientes.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
}

// tradeEvent es el envelope que reciben los clientes del feed.
type tradeEvent struct {
	Type    string    `json:"type"`
	Payload tradeJSON `json:"payload"`
}

// Publish serializa cada trade y lo difunde a todos los clientes.
func (h *Hub) Publish(_ context.Context, trades []domain.Trade) error {
	for _, t := range trades {
		data, err := json.Marshal(tradeEvent{Type: "trade", Payload: toTradeJSON(t)})
		if err != nil {
			return err
		}
		h.broadcast(data)
	}
	return nil
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Buffer lleno: el cliente va lento, se descarta el mensaje.
			h.logger.Warn("ws: dropping message for slow client")
		}
	}
}

// HandleWS hace el upgrade de la conexión y registra al cliente.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client connected", "total_clients", total)

	go h.writePump(c)
	go h.readPump(c)
}

// unregister saca al cliente del hub y cierra su canal de salida.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client disconnected", "total_clients", total)
}

// readPump descarta todo lo que envíe el cliente (el feed es solo de
// salida) y detecta la desconexión.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump empuja mensajes del hub al socket y mantiene el keepalive.
func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
