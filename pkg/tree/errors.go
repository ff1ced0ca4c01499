package tree

import (
	"errors"
	"fmt"

	"github.com/plycad/plycad.go/pkg/connection"
)

var (
	ErrAlreadyStored      = errors.New("object is already stored")
	ErrNotStored          = errors.New("object is not stored")
	ErrUnknownField       = errors.New("unknown field")
	ErrReadOnlyField      = errors.New("field is computed by the server and cannot be written")
	ErrDerivedKind        = errors.New("objects of a derived kind cannot be created by the client")
	ErrUnstoredLinkTarget = errors.New("link target must be stored first")
	ErrParentNotMapped    = errors.New("parent object not found in parent mapping")
	ErrNameNotFound       = errors.New("no object with the given name")
	ErrNoSourceObjects    = errors.New("no source objects given")
)

// InvalidParentError reports a parent of the wrong kind, either on Store or
// during the copy engine's validation pass.
type InvalidParentError struct {
	Kind       Kind
	ParentKind Kind
}

func (e *InvalidParentError) Error() string {
	return fmt.Sprintf("objects of kind %q cannot be stored under a parent of kind %q", e.Kind, e.ParentKind)
}

// NotAvailableError reports a read of a server-computed field on an object
// whose model has not been updated, or on an unstored object.
type NotAvailableError struct {
	Field string
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("field %q is not available: computed data requires a stored object in an updated model", e.Field)
}

// CrossModelLinkError reports a link that would cross model boundaries:
// either a stored-object link to another model, or a "keep" copy into a
// different model.
type CrossModelLinkError struct {
	Source ResourcePath
	Target ResourcePath
}

func (e *CrossModelLinkError) Error() string {
	if e.Source.IsZero() && e.Target.IsZero() {
		return "links cannot cross model boundaries"
	}
	return fmt.Sprintf("link from %q to %q would cross model boundaries", e.Source, e.Target)
}

// ConsistencyError reports a cross-field invariant violation detected by the
// server. The message is surfaced verbatim.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string {
	return e.Message
}

// RemoteError wraps any other failure of the RPC channel or the server.
type RemoteError struct {
	Method string
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote call %q failed: %v", e.Method, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// wrapRemoteField is wrapRemote with the requested field attached, so that a
// "computed data not available" fault names the field the caller asked for.
func wrapRemoteField(method, field string, err error) error {
	var rpcErr *connection.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == connection.CodeNotAvailable {
		return &NotAvailableError{Field: field}
	}
	return wrapRemote(method, err)
}

// wrapRemote translates channel-level errors into the client taxonomy.
func wrapRemote(method string, err error) error {
	if err == nil {
		return nil
	}

	var rpcErr *connection.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case connection.CodeConsistency:
			return &ConsistencyError{Message: rpcErr.Message}
		case connection.CodeNotAvailable:
			return &NotAvailableError{Field: rpcErr.Message}
		}
	}

	return &RemoteError{Method: method, Err: err}
}
