package wire

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

// maxColumnElements bounds decoded arrays. The largest full-machine model
// has a few thousand elements with 36 matrix entries each.
const maxColumnElements = 16 << 20

var (
	// Canonical so that equal tables always encode to equal bytes, which
	// Fingerprint relies on.
	encMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	})

	// Lenient so that services adding keys stay readable.
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		MaxArrayElements:  maxColumnElements,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: cbor encoder options: %v", err))
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: cbor decoder options: %v", err))
	}
	return m
}

// Marshal encodes v in canonical CBOR.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// Fingerprint hashes the canonical encoding of v. Equal fingerprints mean
// equal encodings, barring hash collisions.
func Fingerprint(v any) (uint64, error) {
	data, err := Marshal(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

// PeekMessageType reads key 1 of a frame without decoding the rest. Types
// this package does not know come back as MessageTypeUnknown.
func PeekMessageType(data []byte) (MessageType, error) {
	var head struct {
		Type MessageType `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &head); err != nil {
		return MessageTypeUnknown, fmt.Errorf("failed to peek message: %w", err)
	}
	if head.Type > MessageTypeControl {
		return MessageTypeUnknown, nil
	}
	return head.Type, nil
}

// EncodeRequest validates and encodes req. A zero Type is set to
// MessageTypeRequest.
func EncodeRequest(req *Request) ([]byte, error) {
	if req.Type == MessageTypeUnknown {
		req.Type = MessageTypeRequest
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return Marshal(req)
}

// EncodeResponse encodes resp, forcing its type.
func EncodeResponse(resp *Response) ([]byte, error) {
	resp.Type = MessageTypeResponse
	return Marshal(resp)
}

// EncodeControlMessage encodes a ping, pong or close, forcing its type.
func EncodeControlMessage(msg *ControlMessage) ([]byte, error) {
	msg.Type = MessageTypeControl
	return Marshal(msg)
}

// DecodeRequest decodes and validates a request.
func DecodeRequest(data []byte) (*Request, error) {
	req, err := decodeAs[Request](data, "request")
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// DecodeResponse decodes a response. Frames of any other type are rejected.
func DecodeResponse(data []byte) (*Response, error) {
	resp, err := decodeAs[Response](data, "response")
	if err != nil {
		return nil, err
	}
	if resp.Type != MessageTypeResponse {
		return nil, fmt.Errorf("not a response: type=%s", resp.Type)
	}
	return resp, nil
}

// DecodeControlMessage decodes a control frame. Frames of any other type are
// rejected.
func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	msg, err := decodeAs[ControlMessage](data, "control message")
	if err != nil {
		return nil, err
	}
	if msg.Type != MessageTypeControl {
		return nil, fmt.Errorf("not a control message: type=%s", msg.Type)
	}
	return msg, nil
}

func decodeAs[T any](data []byte, what string) (*T, error) {
	v := new(T)
	if err := Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return v, nil
}
