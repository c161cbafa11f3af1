// Package wsdetector sends detection requests over the service's
// /ws/detect WebSocket and uses HTTP for the weight catalog.
package wsdetector

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/soocke/vision-live-go/detector/httpdetector"
	"github.com/soocke/vision-live-go/domain/detection"
)

type request struct {
	Image  string `json:"image"`
	Weight string `json:"weight,omitempty"`
}

type response struct {
	Objects []detection.Box `json:"objects"`
	TS      float64         `json:"ts,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client keeps one WebSocket open and serialises round trips on it.
type Client struct {
	*httpdetector.Client

	wsURL  string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	dials int
}

// NewClient derives the WebSocket endpoint from the HTTP base URL.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	hc, err := httpdetector.NewClient(baseURL, httpClient)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid detector url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u = u.JoinPath("/ws/detect")
	return &Client{
		Client: hc,
		wsURL:  u.String(),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}, nil
}

// Detect sends img as a data URL and waits for the matching reply. A
// cancelled ctx unblocks the read and drops the connection; the next call
// redials.
func (c *Client) Detect(ctx context.Context, img detection.Image, weight string) ([]detection.Box, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, err := c.connLocked(ctx)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = conn.SetWriteDeadline(now)
		_ = conn.SetReadDeadline(now)
	})
	defer stop()

	if err := conn.WriteJSON(request{Image: dataURL(img), Weight: weight}); err != nil {
		c.dropLocked()
		return nil, c.ctxErr(ctx, errors.Wrap(err, "send frame"))
	}
	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		c.dropLocked()
		return nil, c.ctxErr(ctx, errors.Wrap(err, "read detections"))
	}
	if resp.Error != "" {
		return nil, errors.Errorf("detector: %s", resp.Error)
	}
	return resp.Objects, nil
}

// Close closes the WebSocket, if open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Dials reports how many connections were opened.
func (c *Client) Dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}

func (c *Client) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, c.ctxErr(ctx, errors.Wrapf(err, "dial %s", c.wsURL))
	}
	c.conn = conn
	c.dials++
	if c.logger != nil {
		c.logger.Debug("detector websocket connected", "url", c.wsURL)
	}
	return conn, nil
}

func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func dataURL(img detection.Image) string {
	ct := img.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(ct) + base64.StdEncoding.EncodedLen(len(img.Data)))
	b.WriteString("data:")
	b.WriteString(ct)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(img.Data))
	return b.String()
}
