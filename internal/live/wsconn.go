package live

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/ryverlive/internal/protocol/frame"
	"github.com/danmuck/ryverlive/internal/protocol/session"
	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// WSDialer opens websocket links to chat endpoints.
type WSDialer struct {
	Config session.Config
	Header http.Header
}

func NewWSDialer(cfg session.Config) *WSDialer {
	return &WSDialer{Config: cfg.WithDefaults()}
}

func (d *WSDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	cfg := d.Config.WithDefaults()
	if err := cfg.ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "wss://") {
		tlsCfg, err := cfg.ClientTLSConfig()
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = tlsCfg
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: status=%d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return newWSConn(conn), nil
}

// wsConn adapts a gorilla connection. gorilla allows one concurrent writer,
// so Send serializes; reads happen only on the receiver goroutine.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Receive blocks until a data message arrives. gorilla reads take no
// context; Close unblocks them.
func (c *wsConn) Receive(_ context.Context) (frame.Kind, []byte, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	switch msgType {
	case websocket.TextMessage:
		return frame.KindText, data, nil
	case websocket.BinaryMessage:
		return frame.KindBinary, data, nil
	default:
		return frame.KindControl, data, nil
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
