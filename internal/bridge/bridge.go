// Package bridge publishes assistant events onto a websocket bus so
// other services (home automation, dashboards) can react to executed
// commands.
package bridge

import (
	"encoding/json"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// Message is one event on the bus.
type Message struct {
	From       string            `json:"from"`
	Kind       string            `json:"kind"`
	Command    string            `json:"command,omitempty"`
	Result     string            `json:"result,omitempty"`
	Transcript string            `json:"transcript,omitempty"`
	Confidence float32           `json:"confidence,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// Client is a reconnecting websocket publisher. Writes are
// serialized; a failed write triggers one redial before giving up on
// that message.
type Client struct {
	url        string
	reconnWait time.Duration

	mu   sync.Mutex
	conn *ws.Conn
}

func Dial(url string, reconnWait time.Duration) (*Client, error) {
	if reconnWait <= 0 {
		reconnWait = time.Second
	}

	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("connected to bus", "url", url)
	return &Client{url: url, reconnWait: reconnWait, conn: conn}, nil
}

func (c *Client) Publish(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal bus message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	werr := c.conn.WriteMessage(ws.TextMessage, data)
	if werr == nil {
		return nil
	}

	log.Warn("bus write failed, redialing", "url", c.url, "err", werr)
	c.conn.Close()
	time.Sleep(c.reconnWait)

	conn, _, err := ws.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("redial bus: %w", err)
	}
	c.conn = conn

	return c.conn.WriteMessage(ws.TextMessage, data)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
