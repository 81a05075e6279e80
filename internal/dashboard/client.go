package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/simywang/Teambot/internal/model"

	"github.com/fasthttp/websocket"
)

const pingInterval = 30 * time.Second

// Client connects to the realtime channel and applies every incoming event
// to its Store. It is safe for concurrent use.
type Client struct {
	url      string
	userName string

	mu    sync.Mutex
	conn  *websocket.Conn
	store *Store
}

func NewClient(url, userName string) *Client {
	return &Client{
		url:      url,
		userName: userName,
		store:    NewStore(),
	}
}

// Store returns the mirrored state. Read it only from the goroutine that
// calls Listen, or after Listen returns.
func (c *Client) Store() *Store {
	return c.store
}

func (c *Client) Connect() error {
	header := http.Header{}
	if c.userName != "" {
		header.Set("X-User-Name", c.userName)
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Listen reads events until the connection drops or ctx is cancelled,
// applying each one to the local mirror. Pings go out on a ticker to keep
// the server's read deadline fresh.
func (c *Client) Listen(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = c.send(&model.WSEvent{Type: model.EventPing})
			case <-ctx.Done():
				_ = c.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var event model.WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			log.Printf("[dashboard] skipping malformed event: %v", err)
			continue
		}
		if event.Type == model.EventPong {
			continue
		}
		if err := c.store.Apply(&event); err != nil {
			log.Printf("[dashboard] %v", err)
		}
	}
}

// JoinConversation subscribes to a per-conversation room.
func (c *Client) JoinConversation(conversationID string) error {
	return c.sendRoomEvent(model.EventJoinConversation, conversationID)
}

func (c *Client) LeaveConversation(conversationID string) error {
	return c.sendRoomEvent(model.EventLeaveConversation, conversationID)
}

// NotifyWebUpdate sends the informational web-update event. The REST call
// carrying the actual mutation is the source of truth; this is best-effort.
func (c *Client) NotifyWebUpdate(loiID string, changes map[string]any) {
	event, err := model.NewWSEvent(model.EventWebUpdate, model.WebUpdateNotice{
		LOIID:   loiID,
		Changes: changes,
	})
	if err != nil {
		return
	}
	if err := c.send(event); err != nil {
		log.Printf("[dashboard] web-update notify failed: %v", err)
	}
}

func (c *Client) sendRoomEvent(eventType, conversationID string) error {
	event, err := model.NewWSEvent(eventType, model.RoomRequest{ConversationID: conversationID})
	if err != nil {
		return err
	}
	return c.send(event)
}

func (c *Client) send(event *model.WSEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
