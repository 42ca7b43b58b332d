package ftx

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"
	"github.com/segmentio/encoding/json"
)

// DefaultURL is the public feed endpoint.
const DefaultURL = "wss://ftx.com/ws/"

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 15 * time.Second
	writeTimeout     = 5 * time.Second
)

// opFrame is an outbound control frame.
type opFrame struct {
	Op      string `json:"op"`
	Channel string `json:"channel,omitempty"`
	Market  string `json:"market,omitempty"`
}

// Client is a websocket feed client pumping frames into a Handler.
type Client struct {
	conn    *websocket.Conn
	handler *Handler
	logger  log.Logger
}

// Dial connects to the feed endpoint. url may be empty for DefaultURL.
func Dial(ctx context.Context, url string, handler *Handler, logger log.Logger) (*Client, error) {
	if url == "" {
		url = DefaultURL
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn, handler: handler, logger: logger}, nil
}

// Subscribe requests one (channel, market) stream.
func (c *Client) Subscribe(channel, market string) error {
	return c.writeFrame(opFrame{Op: "subscribe", Channel: channel, Market: market})
}

// Run pumps frames into the handler until the context is cancelled or the
// connection fails. Pings are sent on a fixed interval to keep the feed
// alive.
func (c *Client) Run(ctx context.Context) error {
	pings := time.NewTicker(pingInterval)
	defer pings.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-pings.C:
				if err := c.writeFrame(opFrame{Op: "ping"}); err != nil {
					c.logger.Warn("ping failed", "err", err)
					return
				}
			case <-ctx.Done():
				c.conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if _, err := c.handler.OnMessage(msg); err != nil {
			c.logger.Warn("bad frame", "err", err)
		}
	}
}

// Close tears down the connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) writeFrame(frame opFrame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}
