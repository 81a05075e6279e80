package handler

import (
	"encoding/json"
	"log"
	"time"

	"github.com/simywang/Teambot/internal/model"
	"github.com/simywang/Teambot/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const readDeadline = 60 * time.Second

type WSHandler struct {
	hub *service.WSHub
}

func NewWSHandler(hub *service.WSHub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		// Identity is the same trust-the-client header the REST surface uses.
		c.Locals("user_name", c.Get("X-User-Name", defaultWebUser))
		return websocket.New(h.handleConnection)(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *WSHandler) handleConnection(c *websocket.Conn) {
	userName, _ := c.Locals("user_name").(string)

	client := &service.WSClient{
		Conn:     c,
		ID:       uuid.NewString(),
		UserName: userName,
		Send:     make(chan []byte, 256),
	}

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	// Writer goroutine
	go func() {
		defer c.Close()
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader loop
	c.SetReadDeadline(time.Now().Add(readDeadline))
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		// Reset deadline on any message
		c.SetReadDeadline(time.Now().Add(readDeadline))

		var event model.WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			continue
		}

		switch event.Type {
		case model.EventPing:
			pong, _ := json.Marshal(model.WSEvent{Type: model.EventPong})
			select {
			case client.Send <- pong:
			default:
			}

		case model.EventJoinConversation:
			if room, ok := decodeRoom(event.Data); ok {
				h.hub.JoinRoom(client, room)
				log.Printf("[ws] %s joined conversation %s", client.ID, room)
			}

		case model.EventLeaveConversation:
			if room, ok := decodeRoom(event.Data); ok {
				h.hub.LeaveRoom(client, room)
				log.Printf("[ws] %s left conversation %s", client.ID, room)
			}

		case model.EventWebUpdate:
			// Informational only; the REST call is the source of truth.
			var notice model.WebUpdateNotice
			if err := json.Unmarshal(event.Data, &notice); err == nil {
				log.Printf("[ws] web update notice for LOI %s from %s", notice.LOIID, client.ID)
			}

		default:
			log.Printf("[ws] unknown event type %q from %s", event.Type, client.ID)
		}
	}
}

// decodeRoom accepts either a bare JSON string or a {conversation_id} object.
func decodeRoom(data json.RawMessage) (string, bool) {
	var room string
	if err := json.Unmarshal(data, &room); err == nil && room != "" {
		return room, true
	}
	var req model.RoomRequest
	if err := json.Unmarshal(data, &req); err == nil && req.ConversationID != "" {
		return req.ConversationID, true
	}
	return "", false
}
