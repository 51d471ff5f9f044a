package transport

import (
	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/wire"
)

// Control message types, re-exported for callers that only import transport.
const (
	ControlPing  = wire.ControlPing
	ControlPong  = wire.ControlPong
	ControlClose = wire.ControlClose
)

// EncodePing encodes a ping carrying seq.
func EncodePing(seq uint32) ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{Control: wire.ControlPing, Sequence: seq})
}

// EncodePong encodes the answer to the ping carrying seq.
func EncodePong(seq uint32) ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{Control: wire.ControlPong, Sequence: seq})
}

// EncodeClose encodes a close request.
func EncodeClose() ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{Control: wire.ControlClose})
}

// DecodeControlMessage returns the type and sequence of a control frame.
func DecodeControlMessage(data []byte) (wire.ControlMessageType, uint32, error) {
	msg, err := wire.DecodeControlMessage(data)
	if err != nil {
		return 0, 0, err
	}
	return msg.Control, msg.Sequence, nil
}

// asControl decodes data when it is a control frame. Requests and control
// frames both carry their type under key 1, so the type is peeked first.
func asControl(data []byte) (*wire.ControlMessage, bool) {
	if t, err := wire.PeekMessageType(data); err != nil || t != wire.MessageTypeControl {
		return nil, false
	}
	msg, err := wire.DecodeControlMessage(data)
	return msg, err == nil
}

func controlLogType(ctrl wire.ControlMessageType) (log.ControlMsgType, bool) {
	switch ctrl {
	case wire.ControlPing:
		return log.ControlMsgPing, true
	case wire.ControlPong:
		return log.ControlMsgPong, true
	case wire.ControlClose:
		return log.ControlMsgClose, true
	}
	return 0, false
}
