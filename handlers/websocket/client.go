package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client pairs one websocket connection with its session. The read pump
// dispatches inbound frames one at a time; the write pump drains the
// send channel and keeps the connection alive with pings.
type Client struct {
	conn    *websocket.Conn
	session *Session
	sendCh  chan ServerMessage

	closeOnce sync.Once
	done      chan struct{}
}

// Send queues a message for the write pump. A client that cannot keep up
// is dropped rather than allowed to block the broadcast path.
func (c *Client) Send(msg ServerMessage) bool {
	select {
	case c.sendCh <- msg:
		return true
	case <-c.done:
		return false
	default:
		logrus.WithField("conn_id", c.session.connID).Warn("client send buffer full, dropping connection")
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Handler upgrades the request and runs the connection until it closes.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("websocket upgrade failed")
			return
		}

		client := &Client{
			conn:   conn,
			sendCh: make(chan ServerMessage, sendBufferSize),
			done:   make(chan struct{}),
		}
		client.session = hub.NewSession(client)

		logrus.WithField("conn_id", client.session.connID).Debug("client connected")

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.session.Disconnect(context.Background())
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("conn_id", c.session.connID).Debug("read error")
			}
			return
		}

		msg, err := ParseClientMessage(data)
		if err != nil {
			c.Send(errorMessage(err.Error()))
			continue
		}
		c.session.Dispatch(context.Background(), msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
