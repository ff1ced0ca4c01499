// Package fakeserver provides an in-process modeling server for tests. It
// speaks the client's RPC protocol over WebSocket using CBOR encoding and
// keeps an authoritative in-memory object store, including server-side
// behavior the client depends on: id assignment, name collision suffixing,
// derived-object generation on model update, and consistency checks.
//
// Responses for specific requests can be stubbed to inject failures, for
// example to make the Nth create call fail mid-copy.
package fakeserver

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/lxzan/gws"

	"github.com/plycad/plycad.go/internal/codec"
	"github.com/plycad/plycad.go/pkg/connection"
)

// Stub overrides the response for matching requests. Stubs are consulted
// before the store.
type Stub struct {
	// Method is the RPC method to match.
	Method string
	// Matcher optionally narrows the match based on the request parameters.
	Matcher func(params []any) bool
	// Error is the RPC error to return for matching requests.
	Error *connection.RPCError
}

// Server is the fake modeling server.
type Server struct {
	addr     string
	listener net.Listener
	server   *gws.Server
	store    *Store

	mu    sync.Mutex
	stubs []Stub

	ctx    context.Context
	cancel context.CancelFunc

	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler
}

type handler struct {
	gws.BuiltinEventHandler
	server *Server
}

// NewServer creates a fake modeling server. Use "127.0.0.1:0" to bind to a
// random available port.
func NewServer(addr string) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	c := codec.New()
	s := &Server{
		addr:        addr,
		store:       NewStore(),
		ctx:         ctx,
		cancel:      cancel,
		marshaler:   c,
		unmarshaler: c,
	}

	h := &handler{server: s}
	s.server = gws.NewServer(h, &gws.ServerOption{})
	s.server.OnError = func(_ net.Conn, err error) {
		if !errors.Is(err, net.ErrClosed) && !isClosedNetworkError(err) {
			log.Printf("fakeserver: %v", err)
		}
	}

	return s
}

// AddStub registers a stub response. Stubs are matched in registration order.
func (s *Server) AddStub(stub Stub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs = append(s.stubs, stub)
}

// Store exposes the authoritative store for test assertions.
func (s *Server) Store() *Store {
	return s.store
}

// Start begins accepting WebSocket connections.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.server.RunListener(listener); err != nil {
			if !errors.Is(err, net.ErrClosed) && !isClosedNetworkError(err) {
				log.Printf("fakeserver: %v", err)
			}
		}
	}()

	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the WebSocket base URL of the server.
func (s *Server) URL() string {
	return "ws://" + s.Address()
}

func (h *handler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		log.Printf("fakeserver: write pong: %v", err)
	}
}

func (h *handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	var req connection.RPCRequest
	if err := h.server.unmarshaler.Unmarshal(message.Bytes(), &req); err != nil {
		h.sendError(socket, nil, rpcError(connection.CodeParse, "parse error"))
		return
	}

	params := make([]any, len(req.Params))
	for i, p := range req.Params {
		params[i] = normalize(p)
	}

	if rpcErr := h.server.matchStub(req.Method, params); rpcErr != nil {
		h.sendError(socket, req.ID, rpcErr)
		return
	}

	result, rpcErr := h.server.dispatch(req.Method, params)
	if rpcErr != nil {
		h.sendError(socket, req.ID, rpcErr)
		return
	}
	h.sendResponse(socket, req.ID, result)
}

func (s *Server) matchStub(method string, params []any) *connection.RPCError {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stub := range s.stubs {
		if stub.Method != method {
			continue
		}
		if stub.Matcher != nil && !stub.Matcher(params) {
			continue
		}
		return stub.Error
	}
	return nil
}

//nolint:gocyclo
func (s *Server) dispatch(method string, params []any) (any, *connection.RPCError) {
	switch method {
	case connection.MethodOpenModel:
		path, ok := stringParam(params, 0)
		if !ok {
			return nil, rpcError(connection.CodeInvalidParams, "open_model requires a path")
		}
		return orNil(s.store.OpenModel(path))

	case connection.MethodImportModel:
		path, ok := stringParam(params, 0)
		if !ok {
			return nil, rpcError(connection.CodeInvalidParams, "import_model requires a path")
		}
		// The fake server has no file formats; an import starts empty like an
		// open.
		return orNil(s.store.OpenModel(path))

	case connection.MethodCreate:
		collectionPath, ok1 := stringParam(params, 0)
		name, ok2 := stringParam(params, 1)
		if !ok1 || !ok2 || len(params) < 3 {
			return nil, rpcError(connection.CodeInvalidParams, "create requires collection path, name and properties")
		}
		props, ok := params[2].(map[string]any)
		if !ok {
			return nil, rpcError(connection.CodeInvalidParams, "create properties must be a map")
		}
		return orNil(s.store.Create(collectionPath, name, props))

	case connection.MethodProperties:
		path, ok := stringParam(params, 0)
		if !ok {
			return nil, rpcError(connection.CodeInvalidParams, "properties requires a resource path")
		}
		return orNil(s.store.Properties(path))

	case connection.MethodGet:
		path, ok1 := stringParam(params, 0)
		field, ok2 := stringParam(params, 1)
		if !ok1 || !ok2 {
			return nil, rpcError(connection.CodeInvalidParams, "get requires a resource path and a field")
		}
		value, rpcErr := s.store.Get(path, field)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return value, nil

	case connection.MethodUpdate:
		path, ok1 := stringParam(params, 0)
		field, ok2 := stringParam(params, 1)
		if !ok1 || !ok2 || len(params) < 3 {
			return nil, rpcError(connection.CodeInvalidParams, "update requires a resource path, a field and a value")
		}
		return nil, s.store.Update(path, field, params[2])

	case connection.MethodList:
		collectionPath, ok := stringParam(params, 0)
		if !ok {
			return nil, rpcError(connection.CodeInvalidParams, "list requires a collection path")
		}
		return orNil(s.store.List(collectionPath))

	case connection.MethodDelete:
		path, ok := stringParam(params, 0)
		if !ok {
			return nil, rpcError(connection.CodeInvalidParams, "delete requires a resource path")
		}
		return nil, s.store.Delete(path)

	case connection.MethodUpdateModel:
		path, ok := stringParam(params, 0)
		if !ok {
			return nil, rpcError(connection.CodeInvalidParams, "update_model requires a resource path")
		}
		return nil, s.store.UpdateModel(path)

	case connection.MethodSaveModel:
		path, ok := stringParam(params, 0)
		if !ok {
			return nil, rpcError(connection.CodeInvalidParams, "save_model requires a resource path")
		}
		if _, _, rpcErr := s.store.lookup(path); rpcErr != nil {
			return nil, rpcErr
		}
		return nil, nil

	default:
		return nil, rpcError(connection.CodeServerFault, "unknown method %q", method)
	}
}

// orNil adapts (T, *RPCError) store returns to the dispatch signature.
func orNil[T any](result T, rpcErr *connection.RPCError) (any, *connection.RPCError) {
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func stringParam(params []any, i int) (string, bool) {
	if i >= len(params) {
		return "", false
	}
	s, ok := params[i].(string)
	return s, ok
}

// normalize rewrites decoded CBOR values into map[string]any / []any form.
func normalize(v any) any {
	switch value := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			key, ok := k.(string)
			if !ok {
				continue
			}
			out[key] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func (h *handler) sendResponse(socket *gws.Conn, id, result any) {
	var res connection.RPCResponse[any]
	res.ID = id
	res.Result = &result

	data, err := h.server.marshaler.Marshal(res)
	if err != nil {
		h.sendError(socket, id, rpcError(connection.CodeServerFault, "marshal response: %v", err))
		return
	}
	if err := socket.WriteMessage(gws.OpcodeBinary, data); err != nil {
		log.Printf("fakeserver: write response: %v", err)
	}
}

func (h *handler) sendError(socket *gws.Conn, id any, rpcErr *connection.RPCError) {
	var res connection.RPCResponse[any]
	res.ID = id
	res.Error = rpcErr

	data, err := h.server.marshaler.Marshal(res)
	if err != nil {
		log.Printf("fakeserver: marshal error response: %v", err)
		return
	}
	if err := socket.WriteMessage(gws.OpcodeBinary, data); err != nil {
		log.Printf("fakeserver: write error response: %v", err)
	}
}

func isClosedNetworkError(err error) bool {
	return err != nil && strings.HasSuffix(err.Error(), "use of closed network connection")
}
