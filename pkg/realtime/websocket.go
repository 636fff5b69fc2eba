package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// WebSocketSession is a WebSocket-based realtime session, suitable for
// server-side applications.
type WebSocketSession struct {
	*session
}

// wsTransport frames JSON events over a persistent socket: one event
// object per text frame. A background read loop drains inbound frames
// into the handler without ever blocking the send path.
type wsTransport struct {
	conn      *websocket.Conn
	handler   transportHandler
	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func newWSTransport(conn *websocket.Conn, handler transportHandler) *wsTransport {
	t := &wsTransport{conn: conn, handler: handler}
	go t.readLoop()
	return t
}

// Send writes one text frame. Fails fast once the transport has left the
// open state; frames are never queued against a dead connection.
func (t *wsTransport) Send(data []byte) error {
	if t.closed.Load() {
		return &ConnectionClosedError{}
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close is idempotent.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) readLoop() {
	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			wasClosed := t.closed.Swap(true)
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				t.handler.handleClose(closeErr.Code, closeErr.Text)
			case wasClosed && errors.Is(err, net.ErrClosed):
				// Local Close already ran; not a transport failure.
				t.handler.handleClose(websocket.CloseNormalClosure, "")
			default:
				t.handler.handleError(fmt.Errorf("read error: %w", err))
				t.handler.handleClose(websocket.CloseAbnormalClosure, err.Error())
			}
			return
		}
		t.handler.handleMessage(message)
	}
}

// connectWebSocket mints an ephemeral credential, dials the socket with
// it, and waits for the session.created handshake.
func (c *Client) connectWebSocket(ctx context.Context, config *ConnectConfig) (*WebSocketSession, error) {
	if config == nil {
		config = &ConnectConfig{}
	}
	if config.Model == "" && config.Deployment == "" {
		config.Model = ModelGPT4oRealtimePreview
	}

	token, err := c.CreateEphemeralToken(ctx, config)
	if err != nil {
		return nil, wrapError(err, "bootstrap session")
	}

	wsURL := c.config.wsURL + "?" + endpointQuery(config)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token.Value)
	headers.Set("OpenAI-Beta", "realtime=v1")
	if c.config.organization != "" {
		headers.Set("OpenAI-Organization", c.config.organization)
	}
	if c.config.project != "" {
		headers.Set("OpenAI-Project", c.config.project)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.httpClient.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("realtime: failed to connect: %w", err)
	}

	s := newSession(c, config)
	s.start(newWSTransport(conn, s))

	if err := s.waitReady(ctx, c.config.connectTimeout); err != nil {
		return nil, err
	}
	return &WebSocketSession{session: s}, nil
}

var _ Session = (*WebSocketSession)(nil)
