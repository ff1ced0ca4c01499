package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	gorilla "github.com/gorilla/websocket"

	"github.com/plycad/plycad.go/internal/rand"
)

// DefaultDialer is the gorilla dialer used by WebSocketConnection. It differs
// from the gorilla default in that compression is enabled and the "cbor"
// sub-protocol is announced.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

// WebSocketConnection implements Connection over a WebSocket channel.
type WebSocketConnection struct {
	BaseConnection

	Conn     *gorilla.Conn
	connLock sync.Mutex

	// Timeout is the time to wait for the RPC response after the request has
	// been written. Set to 0 to disable and rely on the caller's context.
	Timeout time.Duration

	closeOnce  sync.Once
	closeChan  chan struct{}
	closeError error
}

// NewWebSocketConnection creates an unconnected WebSocketConnection from the
// given config. Call Connect before sending requests.
func NewWebSocketConnection(cfg *Config) *WebSocketConnection {
	return &WebSocketConnection{
		BaseConnection: BaseConnection{
			baseURL:          cfg.BaseURL,
			marshaler:        cfg.Marshaler,
			unmarshaler:      cfg.Unmarshaler,
			logger:           cfg.Logger,
			responseChannels: make(map[string]chan RPCResponse[cbor.RawMessage]),
		},
		Timeout:   cfg.Timeout,
		closeChan: make(chan struct{}),
	}
}

func (ws *WebSocketConnection) Connect(ctx context.Context) error {
	if err := ws.preConnectionChecks(); err != nil {
		return err
	}

	conn, res, err := DefaultDialer.DialContext(ctx, fmt.Sprintf("%s/rpc", ws.baseURL), nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	ws.Conn = conn

	go ws.readLoop()
	return nil
}

// Close sends a close message to the server and closes the underlying
// connection. The context bounds the time spent on the close handshake; the
// connection is torn down locally even when it expires.
func (ws *WebSocketConnection) Close(ctx context.Context) error {
	ws.connLock.Lock()
	defer ws.connLock.Unlock()

	ws.closeOnce.Do(func() { close(ws.closeChan) })

	if ws.Conn == nil {
		return nil
	}

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- ws.Conn.WriteMessage(
			gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""),
		)
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			ws.logger.Error("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	return ws.Conn.Close()
}

func (ws *WebSocketConnection) Send(ctx context.Context, dest any, method string, params ...any) error {
	if ws.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.Timeout)
		defer cancel()
	}

	select {
	case <-ws.closeChan:
		if ws.closeError != nil {
			return ws.closeError
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	id := rand.NewRequestID(RequestIDLength)
	request := &RPCRequest{
		ID:     id,
		Method: method,
		Params: params,
	}

	responseChan, err := ws.createResponseChannel(id)
	if err != nil {
		return err
	}
	defer ws.removeResponseChannel(id)

	if err := ws.write(request); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res, open := <-responseChan:
		if !open {
			return ErrClosed
		}

		if res.Error != nil {
			return res.Error
		}

		if dest == nil || res.Result == nil {
			return nil
		}

		raw, err := res.Result.MarshalCBOR()
		if err != nil {
			return fmt.Errorf("Send: error reading result: %w", err)
		}

		if err := ws.unmarshaler.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("Send: error unmarshaling result: %w", err)
		}

		return nil
	}
}

func (ws *WebSocketConnection) write(v any) error {
	data, err := ws.marshaler.Marshal(v)
	if err != nil {
		return err
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	return ws.Conn.WriteMessage(gorilla.BinaryMessage, data)
}

func (ws *WebSocketConnection) readLoop() {
	for {
		select {
		case <-ws.closeChan:
			return
		default:
			_, data, err := ws.Conn.ReadMessage()
			if err != nil {
				if ws.handleError(err) {
					return
				}
				continue
			}
			ws.handleResponse(data)
		}
	}
}

// handleError reports whether the read loop should exit.
func (ws *WebSocketConnection) handleError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		ws.closeError = net.ErrClosed
		return true
	}
	if gorilla.IsUnexpectedCloseError(err) || gorilla.IsCloseError(err, gorilla.CloseNormalClosure) {
		ws.closeError = io.ErrClosedPipe
		ws.closeOnce.Do(func() { close(ws.closeChan) })
		return true
	}

	ws.logger.Error(err.Error())
	return false
}

func (ws *WebSocketConnection) handleResponse(data []byte) {
	var res RPCResponse[cbor.RawMessage]
	if err := ws.unmarshaler.Unmarshal(data, &res); err != nil {
		ws.logger.Error("failed to decode response", "error", err)
		return
	}

	id := fmt.Sprintf("%v", res.ID)
	responseChan, ok := ws.getResponseChannel(id)
	if !ok {
		ws.logger.Error("no response channel for id", "id", id)
		return
	}
	responseChan <- res
}
