// Package cbor encodes network messages as a one byte message code followed
// by the CBOR encoding of the message.
package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/garpnet/consensus-core/network/codec"
)

// defaultEncMode produces core deterministic encodings with full-precision timestamps.
var defaultEncMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not create deterministic CBOR encoding mode: %v", err))
	}
	return mode
}()

// Codec implements network.Codec.
type Codec struct {
	enc cbor.EncMode
}

func NewCodec() *Codec {
	return &Codec{enc: defaultEncMode}
}

// Encode encodes a registered message. Messages must be passed by pointer.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	code, what, err := codec.CodeOf(v)
	if err != nil {
		return nil, fmt.Errorf("could not determine message code: %w", err)
	}
	payload, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s payload: %w", what, err)
	}
	data := make([]byte, 0, len(payload)+1)
	data = append(data, code)
	return append(data, payload...), nil
}

// Decode decodes data produced by Encode into a pointer to the message type
// denoted by its first byte.
// Expected errors:
//   - codec.ErrInvalidEncoding for empty data
//   - codec.UnknownCodeError for an unregistered code
//   - codec.PayloadError if the payload does not match its code
func (c *Codec) Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, codec.ErrInvalidEncoding
	}
	code := data[0]
	v, what, err := codec.Empty(code)
	if err != nil {
		return nil, err
	}
	if err := cbor.Unmarshal(data[1:], v); err != nil {
		return nil, codec.PayloadError{Code: code, Message: what, Err: err}
	}
	return v, nil
}

// Size returns the length of the CBOR encoding of v without its message code.
func Size(v interface{}) (int, error) {
	payload, err := defaultEncMode.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(payload), nil
}
