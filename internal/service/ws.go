package service

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/simywang/Teambot/internal/model"

	"github.com/gofiber/contrib/websocket"
)

// WSClient is one connected dashboard session. Rooms holds the conversation
// ids it has joined; membership is managed through the hub.
type WSClient struct {
	Conn     *websocket.Conn
	ID       string
	UserName string
	Send     chan []byte

	rooms map[string]bool
}

type WSHub struct {
	clients    map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan []byte
	mu         sync.RWMutex
	done       chan struct{}
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			client.rooms = make(map[string]bool)
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[ws] %s connected (total: %d)", client.ID, h.OnlineCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("[ws] %s disconnected (total: %d)", client.ID, h.OnlineCount())

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

func (h *WSHub) Shutdown() {
	close(h.done)
}

func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}

// Broadcast delivers an event to every connected client.
func (h *WSHub) Broadcast(event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.broadcast <- data
}

// SendToRoom delivers an event only to clients that joined the conversation
// room. A full send buffer drops the message for that client rather than
// blocking the hub.
func (h *WSHub) SendToRoom(room string, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.rooms[room] {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}

func (h *WSHub) JoinRoom(client *WSClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		client.rooms[room] = true
	}
}

func (h *WSHub) LeaveRoom(client *WSClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(client.rooms, room)
	}
}

func (h *WSHub) InRoom(client *WSClient, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return client.rooms[room]
}

func (h *WSHub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
