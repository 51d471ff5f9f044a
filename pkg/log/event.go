package log

import (
	"time"

	"github.com/meme-go/meme/pkg/wire"
)

// Event is one protocol log record. Exactly one of the payload pointers is
// set. Keys are integers on disk; existing key numbers never change.
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint"`
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`
	LocalRole    Role      `cbor:"6,keyasint,omitempty"`
	RemoteAddr   string    `cbor:"7,keyasint,omitempty"`

	// Model and Path identify the table a wire or service event concerns,
	// e.g. CU_HXR and BMAD:SYS0:1:CU_HXR:LIVE:RMAT.
	Model string `cbor:"8,keyasint,omitempty"`
	Path  string `cbor:"9,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

var directionNames = [...]string{"IN", "OUT"}

func (d Direction) String() string { return enumName(directionNames[:], uint8(d)) }

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	LayerTransport Layer = iota // length-prefixed frames
	LayerWire                   // decoded requests and responses
	LayerService                // sessions and cached tables
)

var layerNames = [...]string{"TRANSPORT", "WIRE", "SERVICE"}

func (l Layer) String() string { return enumName(layerNames[:], uint8(l)) }

// Category classifies the event type.
type Category uint8

const (
	CategoryMessage Category = iota
	CategoryControl
	CategoryState
	CategoryError
)

var categoryNames = [...]string{"MESSAGE", "CONTROL", "STATE", "ERROR"}

func (c Category) String() string { return enumName(categoryNames[:], uint8(c)) }

// Role indicates which end of a connection captured the event.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

var roleNames = [...]string{"CLIENT", "SERVER"}

func (r Role) String() string { return enumName(roleNames[:], uint8(r)) }

// FrameEvent records one transport frame. Size includes the length prefix;
// Data holds at most the first transport.MaxLogFrameDataSize payload bytes.
type FrameEvent struct {
	Size      int    `cbor:"1,keyasint"`
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// MessageEvent records a decoded request or response.
type MessageEvent struct {
	Type      MessageType `cbor:"1,keyasint"`
	MessageID uint32      `cbor:"2,keyasint"`

	// Request fields.
	Scheme string `cbor:"3,keyasint,omitempty"`
	Path   string `cbor:"4,keyasint,omitempty"`

	// Response fields. Rows and Fingerprint describe the returned table.
	Status      *wire.Status `cbor:"5,keyasint,omitempty"`
	Rows        *int         `cbor:"6,keyasint,omitempty"`
	Fingerprint uint64       `cbor:"7,keyasint,omitempty"`
	Payload     any          `cbor:"8,keyasint,omitempty"`

	// ProcessingTime is measured from send (client) or receipt (server) to
	// the response.
	ProcessingTime *time.Duration `cbor:"9,keyasint,omitempty"`
}

// MessageType distinguishes request and response.
type MessageType uint8

const (
	MessageTypeRequest MessageType = iota
	MessageTypeResponse
)

var messageTypeNames = [...]string{"REQUEST", "RESPONSE"}

func (m MessageType) String() string { return enumName(messageTypeNames[:], uint8(m)) }

// StateChangeEvent records a lifecycle transition. OldState is empty for
// the first transition of an entity.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntitySession
	// StateEntityTable events carry table fingerprints as states.
	StateEntityTable
)

var stateEntityNames = [...]string{"CONNECTION", "SESSION", "TABLE"}

func (s StateEntity) String() string { return enumName(stateEntityNames[:], uint8(s)) }

// ControlMsgEvent records a ping, pong or close.
type ControlMsgEvent struct {
	Type ControlMsgType `cbor:"1,keyasint"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	ControlMsgPing ControlMsgType = iota
	ControlMsgPong
	ControlMsgClose
)

var controlMsgTypeNames = [...]string{"PING", "PONG", "CLOSE"}

func (c ControlMsgType) String() string { return enumName(controlMsgTypeNames[:], uint8(c)) }

// ErrorEventData records a failure. Context names the operation that
// failed, e.g. "decode response".
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Code    *int   `cbor:"3,keyasint,omitempty"`
	Context string `cbor:"4,keyasint,omitempty"`
}

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "UNKNOWN"
}

// Kind names the payload carried by the event.
func (e Event) Kind() string {
	switch {
	case e.Frame != nil:
		return "FRAME"
	case e.Message != nil:
		return e.Message.Type.String()
	case e.StateChange != nil:
		return "STATE"
	case e.ControlMsg != nil:
		return e.ControlMsg.Type.String()
	case e.Error != nil:
		return "ERROR"
	}
	return "UNKNOWN"
}
