package link

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Path is where the device serves its websocket.
const Path = "/api/ws"

// Conn is a websocket connection to a device.
type Conn struct {
	ws       *websocket.Conn
	log      zerolog.Logger
	deadline func() time.Time
	mu       sync.Mutex
}

// Option configures a connection.
type Option func(*dialConfig)

type dialConfig struct {
	log          zerolog.Logger
	writeTimeout time.Duration
}

// WithLogger logs every frame at trace level.
func WithLogger(log zerolog.Logger) Option {
	return func(c *dialConfig) {
		c.log = log
	}
}

// WithWriteTimeout bounds each Send. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *dialConfig) {
		c.writeTimeout = d
	}
}

// URL returns the websocket URL of a device given its base URL, e.g.
// "http://micro-blocks.local" becomes "ws://micro-blocks.local/api/ws". A
// bare host name is treated as http.
func URL(device string) (string, error) {
	if !strings.Contains(device, "://") {
		device = "http://" + device
	}
	u, err := url.Parse(device)
	if err != nil {
		return "", fmt.Errorf("invalid device address %q: %w", device, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in device address", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + Path
	return u.String(), nil
}

// Dial opens the websocket of the device at the given base URL.
func Dial(ctx context.Context, device string, opts ...Option) (*Conn, error) {
	cfg := &dialConfig{log: zerolog.Nop(), writeTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	addr, err := URL(device)
	if err != nil {
		return nil, err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	cfg.log.Debug().Str("url", addr).Msg("connected")
	c := &Conn{ws: ws, log: cfg.log}
	if cfg.writeTimeout > 0 {
		timeout := cfg.writeTimeout
		c.deadline = func() time.Time { return time.Now().Add(timeout) }
	}
	return c, nil
}

// Send writes one message. It is safe to call from several goroutines.
func (c *Conn) Send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadline != nil {
		if err := c.ws.SetWriteDeadline(c.deadline()); err != nil {
			return err
		}
	}
	c.log.Trace().Stringer("type", m.Type).Int("size", len(m.Payload)).Msg("send")
	return c.ws.WriteMessage(websocket.BinaryMessage, m.Encode())
}

// Receive blocks until the next binary message arrives. Text frames are
// skipped; the device only uses them for diagnostics.
func (c *Conn) Receive() (Message, error) {
	for {
		kind, frame, err := c.ws.ReadMessage()
		if err != nil {
			return Message{}, err
		}
		if kind != websocket.BinaryMessage {
			c.log.Debug().Bytes("text", frame).Msg("ignoring text frame")
			continue
		}
		m, err := DecodeMessage(frame)
		if err != nil {
			return Message{}, err
		}
		c.log.Trace().Stringer("type", m.Type).Int("size", len(m.Payload)).Msg("receive")
		return m, nil
	}
}

// Close says goodbye to the device and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// IsClosed reports whether err signals a normally closed connection.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
