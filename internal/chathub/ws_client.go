package chathub

import (
	"encoding/json"
	"strangerchat/backend/internal/models"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Commands a web client may send as the message type.
var wsCommands = map[string]bool{
	models.CommandChat:   true,
	models.CommandNext:   true,
	models.CommandLeave:  true,
	models.CommandStatus: true,
}

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	UserID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.ChatMessage

	closeOnce sync.Once
	log       zerolog.Logger
}

func NewWebSocketClient(userID string, conn *websocket.Conn, hub *ManagerService) *WebSocketClient {
	return &WebSocketClient{
		UserID: userID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.ChatMessage, sendBuffer),
		log:    hub.log.With().Str("transport", "websocket").Str("participant", userID).Logger(),
	}
}

func (c *WebSocketClient) GetUserID() string                         { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ChatMessage { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which stops writePump and then the connection.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		// Повідомляємо хаб про відключення
		select {
		case c.Hub.UnregisterCh <- c:
		case <-c.Hub.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		msg, ok := c.decode(data)
		if !ok {
			continue
		}

		select {
		case c.Hub.IncomingCh <- msg:
		case <-c.Hub.Done():
			return
		}
	}
}

// decode parses one frame. Anything that is not a command is relayed as the
// declared media type, defaulting to text.
func (c *WebSocketClient) decode(data []byte) (models.ChatMessage, bool) {
	var msg models.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Debug().Err(err).Msg("Invalid JSON frame")
		return msg, false
	}

	msg.SenderID = c.UserID
	msg.RoomID = ""
	switch {
	case wsCommands[msg.Type]:
	case msg.Type == "":
		msg.Type = models.TypeText
	case msg.IsSystem():
		// Clients cannot impersonate the hub.
		return msg, false
	}
	if !wsCommands[msg.Type] && msg.Content == "" {
		return msg, false
	}
	return msg, true
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
