package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

const (
	MessageLeaderboardUpdate = "LEADERBOARD_UPDATE"
	MessagePing              = "PING"
	MessagePong              = "PONG"

	writeWait  = 10 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client owns one connection. Only its writer goroutine writes to conn.
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub fans leaderboard snapshots out to every connected client.
type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 100),
	}
}

func (hub *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range hub.clients {
				close(client.send)
			}
			return

		case client := <-hub.register:
			hub.clients[client] = true
			log.WithField("clients", len(hub.clients)).Debug("WebSocket client registered")

		case client := <-hub.unregister:
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				close(client.send)
			}

		case message := <-hub.broadcast:
			for client := range hub.clients {
				select {
				case client.send <- message:
				default:
					// slow reader
					delete(hub.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// BroadcastLeaderboard implements services.Broadcaster. It never blocks the
// refresh loop; a full queue drops the update.
func (hub *WebSocketHub) BroadcastLeaderboard(snapshot *models.LeaderboardSnapshot) {
	data, err := json.Marshal(Message{Type: MessageLeaderboardUpdate, Data: snapshot})
	if err != nil {
		log.WithError(err).Error("Failed to encode leaderboard update")
		return
	}
	select {
	case hub.broadcast <- data:
	default:
		log.Warn("WebSocket broadcast queue full, dropping leaderboard update")
	}
}

type WebSocketHandler struct {
	hub         *WebSocketHub
	leaderboard *services.LeaderboardService
}

func NewWebSocketHandler(hub *WebSocketHub, leaderboard *services.LeaderboardService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, leaderboard: leaderboard}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.hub.register <- client
	go client.writePump()

	if h.leaderboard != nil {
		if view, err := h.leaderboard.Leaderboard(c.Request.Context(), "", 0); err == nil {
			client.queue(Message{Type: MessageLeaderboardUpdate, Data: view.LeaderboardSnapshot})
		}
	}

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("WebSocket read error")
			}
			return
		}
		if msg.Type == MessagePing {
			client.queue(Message{Type: MessagePong, Data: gin.H{"timestamp": time.Now().Unix()}})
		}
	}
}

func (c *Client) queue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	defer func() {
		// send was closed by the hub
		_ = recover()
	}()
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
}
