package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	drepo "RiskPulse/internal/domain/repository"
	applogger "RiskPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a TransactionStream backed by a WebSocket feed.
//
// Frames are JSON objects {"type": "transactions", "data": [TransactionRecord...]};
// other frame types are ignored.
type Client struct {
	token          string
	url            string
	channels       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	mu        sync.Mutex // guards conn and writes
	conn      *websocket.Conn
	connected bool
}

// New creates a new feed TransactionStream.
func New(url, token string, channels []string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) drepo.TransactionStream {
	if l == nil {
		l = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		token:          token,
		url:            url,
		channels:       channels,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, h)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.l.Info("feed connected", applogger.String("url", c.url))
	return nil
}

type subscribeMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// Subscribe subscribes to the configured channels.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, ch := range c.channels {
		if err := c.conn.WriteJSON(subscribeMsg{Type: "subscribe", Channel: ch}); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		c.l.Info("feed subscribed", applogger.String("channel", ch))
	}
	return nil
}

type frame struct {
	Type string                     `json:"type"`
	Data []models.TransactionRecord `json:"data"`
}

// Read streams transactions and errors until the connection fails or ctx is done.
func (c *Client) Read(ctx context.Context) (<-chan *models.TransactionRecord, <-chan error) {
	txs := make(chan *models.TransactionRecord, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	go c.pingLoop(readCtx, conn)

	go func() {
		defer cancel()
		defer close(txs)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("feed conn nil")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if readCtx.Err() == nil {
					errs <- fmt.Errorf("feed read: %w", err)
				}
				return
			}
			var f frame
			if err := json.Unmarshal(b, &f); err != nil || f.Type != "transactions" {
				continue
			}
			for i := range f.Data {
				t := f.Data[i]
				select {
				case txs <- &t:
				case <-readCtx.Done():
					return
				default:
					c.l.Warn("feed backpressure, transaction dropped", applogger.String("id", t.ID))
				}
			}
		}
	}()

	// Unblock ReadMessage on cancellation.
	go func() {
		<-readCtx.Done()
		if ctx.Err() != nil && conn != nil {
			_ = conn.Close()
		}
	}()

	return txs, errs
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Reconnect closes, waits the reconnect delay and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
