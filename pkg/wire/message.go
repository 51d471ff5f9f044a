package wire

import (
	"errors"
	"fmt"
)

// MessageType identifies a frame. It is always stored under key 1.
type MessageType uint8

const (
	MessageTypeUnknown  MessageType = 0
	MessageTypeRequest  MessageType = 1
	MessageTypeResponse MessageType = 2
	MessageTypeControl  MessageType = 3
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// DefaultScheme is the request scheme used by the model service.
const DefaultScheme = "pva"

// Validation errors.
var (
	ErrInvalidMessageID = errors.New("messageId 0 is reserved")
	ErrEmptyPath        = errors.New("request path is empty")
)

// Request asks the service for one table.
//
// CBOR encoding:
//
//	{
//	  1: type,       // uint8: 1
//	  2: messageId,  // uint32, never 0
//	  3: scheme,     // string, e.g. "pva"
//	  4: path,       // string, e.g. "BMAD:SYS0:1:CU_HXR:LIVE:RMAT"
//	  5: query       // map[string]string, optional
//	}
type Request struct {
	Type      MessageType       `cbor:"1,keyasint"`
	MessageID uint32            `cbor:"2,keyasint"`
	Scheme    string            `cbor:"3,keyasint"`
	Path      string            `cbor:"4,keyasint"`
	Query     map[string]string `cbor:"5,keyasint,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.Type != MessageTypeRequest {
		return fmt.Errorf("not a request: type=%s", r.Type)
	}
	if r.MessageID == 0 {
		return ErrInvalidMessageID
	}
	if r.Path == "" {
		return ErrEmptyPath
	}
	return nil
}

// Response answers a Request with the same message id.
//
// CBOR encoding:
//
//	{
//	  1: type,       // uint8: 2
//	  2: messageId,  // uint32: matches request
//	  3: status,     // uint8
//	  4: table,      // Table, only on success
//	  5: message     // string, human-readable error detail
//	}
type Response struct {
	Type      MessageType `cbor:"1,keyasint"`
	MessageID uint32      `cbor:"2,keyasint"`
	Status    Status      `cbor:"3,keyasint"`
	Table     *Table      `cbor:"4,keyasint,omitempty"`
	Message   string      `cbor:"5,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// ControlMessage represents a transport-level control message.
type ControlMessage struct {
	Type     MessageType        `cbor:"1,keyasint"`
	Control  ControlMessageType `cbor:"2,keyasint"`
	Sequence uint32             `cbor:"3,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlMessageType = 3
)

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}
