package push

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"livesync/core/auth"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventType tags an Event.
type EventType int

const (
	// EventConnected is emitted after every successful (re)connect.
	EventConnected EventType = iota
	// EventMessage carries one text frame.
	EventMessage
	// EventDisconnected is emitted when an established connection drops.
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one item delivered by a Channel, in arrival order.
type Event struct {
	Type    EventType
	Payload []byte
	Err     error
}

// Config holds push channel settings.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws/users.
	URL string
	// TokenParam names the query parameter carrying the token. Empty disables it.
	TokenParam string
	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
	// PingInterval is how often a ping is sent. Reads time out after twice this value.
	PingInterval time.Duration
	// WriteTimeout bounds control frame writes.
	WriteTimeout time.Duration
	// ReconnectMin and ReconnectMax bound the reconnect backoff.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// BufferSize is the capacity of the Events channel.
	BufferSize int
}

func (c *Config) setDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = 500 * time.Millisecond
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 30 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
}

// Channel is a reconnecting websocket subscription.
type Channel struct {
	cfg    Config
	creds  auth.Credentials
	logger *zap.Logger
	dialer *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial starts the subscription in the background. It returns immediately; connection
// progress is reported on Events. The channel runs until ctx is done or Close is called.
func Dial(ctx context.Context, cfg Config, creds auth.Credentials, logger *zap.Logger) *Channel {
	cfg.setDefaults()
	cancelCtx, cancel := context.WithCancel(ctx)
	c := &Channel{
		cfg:    cfg,
		creds:  creds,
		logger: logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		ctx:    cancelCtx,
		cancel: cancel,
		events: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Events returns the event stream. It is closed after the channel stops.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close stops the subscription and waits for the background loop to exit.
func (c *Channel) Close() {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Channel) run() {
	defer close(c.done)
	defer close(c.events)

	backoff := c.cfg.ReconnectMin
	for {
		conn, err := c.connect()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("Push channel connect failed",
				zap.String("url", c.cfg.URL),
				zap.Duration("retry_in", backoff),
				zap.Error(err),
			)
			if !c.sleep(backoff) {
				return
			}
			backoff *= 2
			if backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}
		backoff = c.cfg.ReconnectMin

		c.logger.Info("Push channel connected", zap.String("url", c.cfg.URL))
		if !c.emit(Event{Type: EventConnected}) {
			conn.Close()
			return
		}

		err = c.serve(conn)
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warn("Push channel disconnected", zap.Error(err))
		if !c.emit(Event{Type: EventDisconnected, Err: err}) {
			return
		}
		if !c.sleep(backoff) {
			return
		}
	}
}

func (c *Channel) connect() (*websocket.Conn, error) {
	target, err := c.target()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if h := c.creds.Header(); h != "" {
		header.Set("Authorization", h)
	}
	conn, _, err := c.dialer.DialContext(c.ctx, target, header)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *Channel) target() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid push url: %w", err)
	}
	if c.cfg.TokenParam != "" && c.creds.Token != "" {
		q := u.Query()
		q.Set(c.cfg.TokenParam, c.creds.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// serve reads frames until the connection fails. A pinger runs alongside and
// extends the read deadline on every pong.
func (c *Channel) serve(conn *websocket.Conn) error {
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	readTimeout := 2 * c.cfg.PingInterval
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-c.ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(c.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if messageType != websocket.TextMessage || len(message) == 0 {
			c.logger.Debug("Ignoring push frame", zap.Int("type", messageType), zap.Int("size", len(message)))
			continue
		}
		if !c.emit(Event{Type: EventMessage, Payload: message}) {
			return c.ctx.Err()
		}
	}
}

// emit delivers an event, blocking for back-pressure. It returns false once the
// channel is shutting down.
func (c *Channel) emit(ev Event) bool {
	select {
	case <-c.ctx.Done():
		return false
	case c.events <- ev:
		return true
	}
}

func (c *Channel) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
