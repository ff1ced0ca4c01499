package connection

// RPCError represents an error returned by the modeling server.
type RPCError struct {
	Code    int    `json:"code" cbor:"code"`
	Message string `json:"message,omitempty" cbor:"message,omitempty"`
}

func (r *RPCError) Error() string {
	return r.Message
}

func (r *RPCError) Is(target error) bool {
	if target == nil {
		return r == nil
	}

	_, ok := target.(*RPCError)
	return ok
}

// Error codes assigned by the modeling server.
const (
	CodeParse         = -32700
	CodeInvalidParams = -32602
	CodeServerFault   = -32000
	CodeNotFound      = -32010
	CodeConsistency   = -32050
	CodeNotAvailable  = -32060
)

// RPCRequest represents an outgoing RPC request.
type RPCRequest struct {
	ID     any    `json:"id" cbor:"id"`
	Method string `json:"method,omitempty" cbor:"method,omitempty"`
	Params []any  `json:"params,omitempty" cbor:"params,omitempty"`
}

// RPCResponse represents an incoming RPC response.
type RPCResponse[T any] struct {
	ID     any       `json:"id" cbor:"id"`
	Error  *RPCError `json:"error,omitempty" cbor:"error,omitempty"`
	Result *T        `json:"result,omitempty" cbor:"result,omitempty"`
}

// Methods understood by the modeling server.
const (
	MethodOpenModel   = "open_model"
	MethodImportModel = "import_model"
	MethodSaveModel   = "save_model"
	MethodUpdateModel = "update_model"
	MethodCreate      = "create"
	MethodProperties  = "properties"
	MethodGet         = "get"
	MethodUpdate      = "update"
	MethodList        = "list"
	MethodDelete      = "delete"
)

// ObjectInfo identifies one remote object. The server returns it from
// open_model, import_model, create and list calls.
type ObjectInfo struct {
	ID           string `json:"id" cbor:"id"`
	ResourcePath string `json:"resource_path" cbor:"resource_path"`
	Name         string `json:"name" cbor:"name"`
}

// Snapshot is the full field state of one remote object, as returned by the
// properties method. Link fields are resource path strings, link lists are
// arrays of resource path strings.
type Snapshot struct {
	Name       string         `json:"name" cbor:"name"`
	Properties map[string]any `json:"properties" cbor:"properties"`
}
