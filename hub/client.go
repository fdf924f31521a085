package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"furbook.app/petpals/models"
	"furbook.app/petpals/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8 << 10
	sendQueueSize  = 64
	loadTimeout    = 5 * time.Second
)

// TokenParser turns a bearer token into a username.
type TokenParser interface {
	Parse(token string) (string, error)
}

// Client is one authenticated connection. Only its writePump writes to conn.
type Client struct {
	hub      *Hub
	username string
	conn     *websocket.Conn
	send     chan []byte
	groups   map[int]struct{} // guarded by hub.mu

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(h *Hub, username string, conn *websocket.Conn) *Client {
	return &Client{
		hub:      h,
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) trySend(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and runs the connection until it closes. The
// first frame must authenticate the user.
func (h *Hub) ServeWS(tokens TokenParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug().Err(err).Msg("ws upgrade failed")
			return
		}
		conn.SetReadLimit(maxMessageSize)

		username, groupIDs, ok := h.authenticate(r.Context(), conn, tokens)
		if !ok {
			conn.Close()
			return
		}

		c := newClient(h, username, conn)
		ack, _ := encodeFrame(models.FrameAuth, models.AuthStatus{Status: "success"})
		c.send <- ack
		h.register(c, groupIDs)
		h.log.Info().Str("user", username).Int("groups", len(groupIDs)).Msg("ws connected")

		go c.writePump()
		c.readPump()
	}
}

func (h *Hub) authenticate(ctx context.Context, conn *websocket.Conn, tokens TokenParser) (string, []int, bool) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", nil, false
	}

	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != models.FrameAuth {
		h.log.Debug().Msg("ws first frame is not auth")
		return "", nil, false
	}
	observability.RecordWSFrame("in", string(models.FrameAuth))

	var auth models.AuthPayload
	_ = json.Unmarshal(frame.Payload, &auth)
	username, err := tokens.Parse(auth.Token)
	if err != nil {
		h.rejectAuth(conn)
		return "", nil, false
	}

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	groupIDs, err := h.loader.GroupIDsOfUser(loadCtx, username)
	if err != nil {
		h.log.Error().Err(err).Str("user", username).Msg("load groups failed")
		h.rejectAuth(conn)
		return "", nil, false
	}
	return username, groupIDs, true
}

func (h *Hub) rejectAuth(conn *websocket.Conn) {
	nack, _ := encodeFrame(models.FrameAuth, models.AuthStatus{Status: "failed"})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, nack)
}

func (c *Client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("user", c.username).Msg("ws read error")
			}
			return
		}
		c.hub.handleFrame(c, raw)
	}
}

func (h *Hub) handleFrame(c *Client, raw []byte) {
	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}

	switch frame.Type {
	case models.FrameAuth:
		// already authenticated
	case models.FrameChat:
		var chat models.ChatPayload
		if err := json.Unmarshal(frame.Payload, &chat); err != nil {
			return
		}
		if !h.isMember(c.username, chat.GroupID) {
			return
		}
		chat.Username = c.username
		out, err := encodeFrame(models.FrameChat, chat)
		if err != nil {
			return
		}
		h.broadcast(chat.GroupID, out, c.username)
	case models.FrameNotification:
		h.enqueue(c, raw)
	default:
		return
	}
	observability.RecordWSFrame("in", string(frame.Type))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
