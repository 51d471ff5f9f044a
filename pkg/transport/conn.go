package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/wire"
)

// ErrConnectionClosed is returned when using a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// Connection states recorded in protocol logs.
const (
	stateConnected    = "CONNECTED"
	stateDisconnected = "DISCONNECTED"
)

// endpoint is one end of a framed connection. ClientConn and ServerConn
// embed it.
type endpoint struct {
	conn   net.Conn
	framer *Framer
	connID string
	remote net.Addr
	role   log.Role
	logger log.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

func newEndpoint(conn net.Conn, remote net.Addr, maxSize uint32, role log.Role, logger log.Logger) *endpoint {
	e := &endpoint{
		conn:   conn,
		framer: NewFramerWithMaxSize(conn, maxSize),
		connID: uuid.NewString(),
		remote: remote,
		role:   role,
		logger: logger,
		closed: make(chan struct{}),
	}
	if logger != nil {
		e.framer.SetLogger(logger, e.connID)
	}
	e.logState("", stateConnected)
	return e
}

// ConnID returns the id under which the connection appears in protocol logs.
func (e *endpoint) ConnID() string { return e.connID }

// RemoteAddr returns the peer address.
func (e *endpoint) RemoteAddr() net.Addr { return e.remote }

// LocalAddr returns the local address.
func (e *endpoint) LocalAddr() net.Addr { return e.conn.LocalAddr() }

// Send writes one frame. Safe for concurrent use.
func (e *endpoint) Send(data []byte) error {
	if e.isClosed() {
		return ErrConnectionClosed
	}
	return e.framer.WriteFrame(data)
}

// Close closes the connection. Further calls return nil.
func (e *endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		err = e.conn.Close()
		e.logState(stateConnected, stateDisconnected)
	})
	return err
}

func (e *endpoint) isClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

func (e *endpoint) sendControl(ctrl wire.ControlMessageType, seq uint32) error {
	data, err := wire.EncodeControlMessage(&wire.ControlMessage{Control: ctrl, Sequence: seq})
	if err != nil {
		return err
	}
	e.logControl(ctrl, log.DirectionOut)
	return e.Send(data)
}

func (e *endpoint) logState(old, state string) {
	if e.logger == nil {
		return
	}
	e.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: e.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    e.role,
		RemoteAddr:   e.remote.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old,
			NewState: state,
		},
	})
}

func (e *endpoint) logControl(ctrl wire.ControlMessageType, dir log.Direction) {
	if e.logger == nil {
		return
	}
	t, ok := controlLogType(ctrl)
	if !ok {
		return
	}
	e.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: e.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		LocalRole:    e.role,
		RemoteAddr:   e.remote.String(),
		ControlMsg:   &log.ControlMsgEvent{Type: t},
	})
}
