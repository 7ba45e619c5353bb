package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"FinProfile/internal/domain/models"
	drepo "FinProfile/internal/domain/repository"
	"FinProfile/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	readLimit    = 1 << 20
	writeTimeout = 5 * time.Second
)

// Client is a MarketStream over the Finnhub trades websocket.
type Client struct {
	apiKey         string
	endpoint       string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	log            *logger.Logger

	mu        sync.Mutex // guards conn, connected and writes
	conn      *websocket.Conn
	connected bool
}

var _ drepo.MarketStream = (*Client)(nil)

// New returns a client for endpoint streaming trades of symbols.
func New(apiKey, endpoint string, symbols []string, reconnectDelay, pingInterval time.Duration, l *logger.Logger) *Client {
	if l == nil {
		l = logger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		endpoint:       endpoint,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		dialer:         websocket.DefaultDialer,
		log:            l.With(logger.String("component", "finnhub")),
	}
}

func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("finnhub url: %w", err)
	}
	if c.apiKey != "" {
		q := u.Query()
		q.Set("token", c.apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// idle is how long a connection may stay silent before Read gives up on it.
func (c *Client) idle() time.Duration { return 2 * c.pingInterval }

// Connect dials the websocket.
func (c *Client) Connect(ctx context.Context) error {
	u, err := c.streamURL()
	if err != nil {
		return err
	}
	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	conn.SetReadLimit(readLimit)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.idle()))
	})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("connected", logger.String("endpoint", c.endpoint))
	return nil
}

type subscription struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// Subscribe requests trades for every configured symbol.
func (c *Client) Subscribe(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return errors.New("finnhub not connected")
	}
	for _, s := range c.symbols {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(subscription{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("subscribed", logger.Strings("symbols", c.symbols))
	return nil
}

type wireTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type frame struct {
	Type string      `json:"type"`
	Data []wireTrade `json:"data"`
}

// parseMessage extracts trades from a frame. Pings, errors and anything
// unparseable yield nil.
func parseMessage(b []byte) []*models.Trade {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil || f.Type != "trade" {
		return nil
	}
	out := make([]*models.Trade, 0, len(f.Data))
	for _, d := range f.Data {
		if d.S == "" {
			continue
		}
		out = append(out, &models.Trade{Symbol: d.S, Timestamp: d.T, Price: d.P, Volume: d.V})
	}
	return out
}

// Read streams trades until the connection fails or ctx ends, then closes
// both channels. A failure is delivered on the error channel first. Sends
// block, so a slow consumer throttles the socket instead of losing trades.
func (c *Client) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	trades := make(chan *models.Trade, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		errs <- errors.New("finnhub not connected")
		close(trades)
		close(errs)
		return trades, errs
	}

	done := make(chan struct{})
	go c.keepAlive(ctx, conn, done)

	go func() {
		defer close(done)
		defer close(trades)
		defer close(errs)
		for ctx.Err() == nil {
			_ = conn.SetReadDeadline(time.Now().Add(c.idle()))
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			for _, t := range parseMessage(b) {
				select {
				case trades <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return trades, errs
}

func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.log.Debug("ping failed", logger.Error(err))
			}
		}
	}
}

// Reconnect drops the current connection and dials again after the
// configured delay.
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

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
