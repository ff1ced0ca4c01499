// Package codec defines the marshaling interfaces used by the RPC channel,
// together with the default CBOR implementation.
package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

type Marshaler interface {
	Marshal(v any) ([]byte, error)
	NewEncoder(w io.Writer) Encoder
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
	NewDecoder(r io.Reader) Decoder
}

// CBOR implements Marshaler and Unmarshaler on top of fxamacker/cbor.
type CBOR struct{}

func New() *CBOR {
	return &CBOR{}
}

func (c *CBOR) Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (c *CBOR) NewEncoder(w io.Writer) Encoder {
	return cbor.NewEncoder(w)
}

func (c *CBOR) Unmarshal(data []byte, dst any) error {
	return cbor.Unmarshal(data, dst)
}

func (c *CBOR) NewDecoder(r io.Reader) Decoder {
	return cbor.NewDecoder(r)
}
