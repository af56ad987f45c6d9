package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/melih/lighthouse-console/internal/core/ports"
)

const (
	// DefaultPath is the container-events scope on the backend.
	DefaultPath  = "/ws/containers"
	writeTimeout = 10 * time.Second
)

// Dialer opens push channels.
type Dialer struct {
	url    string
	ws     *websocket.Dialer
	header http.Header
	logger *slog.Logger
}

// Option customizes a Dialer.
type Option func(*Dialer)

// WithHeader adds headers to the handshake request.
func WithHeader(h http.Header) Option {
	return func(d *Dialer) {
		for k, vs := range h {
			for _, v := range vs {
				d.header.Add(k, v)
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dialer) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDialer targets path on the backend at baseURL. http and https base
// URLs map to ws and wss.
func NewDialer(baseURL, path string, opts ...Option) (*Dialer, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	if path == "" {
		path = DefaultPath
	}
	u = u.JoinPath(path)

	d := &Dialer{
		url: u.String(),
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		header: http.Header{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// URL is the websocket endpoint.
func (d *Dialer) URL() string { return d.url }

// Dial implements ports.PushDialer.
func (d *Dialer) Dial(ctx context.Context) (ports.PushConn, error) {
	ws, resp, err := d.ws.DialContext(ctx, d.url, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open push channel (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to open push channel: %w", err)
	}
	return &Conn{ws: ws, logger: d.logger}, nil
}

// Conn is one websocket push channel. Receive must be called from a single
// goroutine; writes may come from any.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	logger  *slog.Logger
	once    sync.Once
	err     error
}

// Receive returns the next recognized event. Unknown and malformed
// messages are logged and skipped.
func (c *Conn) Receive() (ports.PushEvent, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return ports.PushEvent{}, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		ev, err := Decode(data)
		if err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				c.logger.Debug("ignoring push event", "error", err)
			} else {
				c.logger.Warn("dropping malformed push message", "error", err)
			}
			continue
		}
		return ev, nil
	}
}

// RequestInitialStatus asks the server for a full snapshot.
func (c *Conn) RequestInitialStatus() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(request{Event: ports.EventGetInitialStatus}); err != nil {
		return fmt.Errorf("failed to request initial status: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the socket. It is safe to call more
// than once.
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.err = c.ws.Close()
	})
	return c.err
}
