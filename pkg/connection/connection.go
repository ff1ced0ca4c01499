// Package connection implements the RPC channel to the modeling server.
//
// The channel speaks a request/response protocol: every request carries a
// client-generated id, and the matching response is routed back to the caller
// through a per-id channel. The wire encoding is CBOR.
package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/plycad/plycad.go/internal/codec"
	"github.com/plycad/plycad.go/pkg/logger"
)

// Connection is the transport used by the tree layer to reach the modeling
// server.
type Connection interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Send issues one RPC and decodes the response result into dest, which
	// must be a pointer. Pass nil to discard the result. A server-side error
	// is returned as *RPCError.
	Send(ctx context.Context, dest any, method string, params ...any) error
}

// BaseConnection carries the state shared by Connection implementations:
// codec, logger, and the request-id to response-channel correlation map.
type BaseConnection struct {
	baseURL     string
	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler
	logger      logger.Logger

	responseChannels     map[string]chan RPCResponse[cbor.RawMessage]
	responseChannelsLock sync.RWMutex
}

func (bc *BaseConnection) createResponseChannel(id string) (chan RPCResponse[cbor.RawMessage], error) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()

	if _, ok := bc.responseChannels[id]; ok {
		return nil, fmt.Errorf("%w: %v", ErrIDInUse, id)
	}

	ch := make(chan RPCResponse[cbor.RawMessage], 1)
	bc.responseChannels[id] = ch

	return ch, nil
}

func (bc *BaseConnection) removeResponseChannel(id string) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()
	delete(bc.responseChannels, id)
}

func (bc *BaseConnection) getResponseChannel(id string) (chan RPCResponse[cbor.RawMessage], bool) {
	bc.responseChannelsLock.RLock()
	defer bc.responseChannelsLock.RUnlock()
	ch, ok := bc.responseChannels[id]
	return ch, ok
}

func (bc *BaseConnection) preConnectionChecks() error {
	if bc.baseURL == "" {
		return ErrNoBaseURL
	}

	if bc.marshaler == nil {
		return ErrNoMarshaler
	}

	if bc.unmarshaler == nil {
		return ErrNoUnmarshaler
	}

	return nil
}
