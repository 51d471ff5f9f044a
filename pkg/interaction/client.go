package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/wire"
)

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("client is closed")
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrEmptyTable      = errors.New("response carried no table")
)

// DefaultTimeout bounds a single request when the context has no deadline.
const DefaultTimeout = 30 * time.Second

// RequestSender is the interface for sending frames over a connection.
type RequestSender interface {
	Send(data []byte) error
}

// Client issues table requests and matches responses by message id.
// Incoming frames are handed to Dispatch by whoever owns the connection.
type Client struct {
	mu sync.RWMutex

	sender  RequestSender
	timeout time.Duration
	logger  log.Logger
	connID  string

	nextMsgID  uint32
	nextPingID uint32

	pending   map[uint32]chan *wire.Response
	pings     map[uint32]chan struct{}
	pendingMu sync.Mutex

	closed bool
}

// NewClient creates a new interaction client.
func NewClient(sender RequestSender) *Client {
	return &Client{
		sender:  sender,
		timeout: DefaultTimeout,
		pending: make(map[uint32]chan *wire.Response),
		pings:   make(map[uint32]chan struct{}),
	}
}

// SetTimeout sets the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetLogger enables wire-layer protocol logging.
func (c *Client) SetLogger(logger log.Logger, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
	c.connID = connID
}

// Close fails all pending requests with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	for _, ch := range c.pings {
		close(ch)
	}
	c.pending = make(map[uint32]chan *wire.Response)
	c.pings = make(map[uint32]chan struct{})
	c.pendingMu.Unlock()

	return nil
}

func (c *Client) nextMessageID() uint32 {
	for {
		if id := atomic.AddUint32(&c.nextMsgID, 1); id != 0 {
			return id
		}
	}
}

// Get fetches the table at path. A non-success status is returned as a
// *StatusError.
func (c *Client) Get(ctx context.Context, scheme, path string, query map[string]string) (*wire.Table, error) {
	if scheme == "" {
		scheme = wire.DefaultScheme
	}
	req := &wire.Request{
		MessageID: c.nextMessageID(),
		Scheme:    scheme,
		Path:      path,
		Query:     query,
	}

	start := time.Now()
	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logResponse(req, resp, time.Since(start))

	if !resp.IsSuccess() {
		return nil, &StatusError{Status: resp.Status, Message: resp.Message, Path: path}
	}
	if resp.Table == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, path)
	}
	if err := resp.Table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid table for %s: %w", path, err)
	}
	return resp.Table, nil
}

// Ping sends a ping control frame and waits for the matching pong.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	timeout, err := c.checkOpen()
	if err != nil {
		return 0, err
	}

	seq := atomic.AddUint32(&c.nextPingID, 1)
	ch := make(chan struct{}, 1)

	c.pendingMu.Lock()
	c.pings[seq] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pings, seq)
		c.pendingMu.Unlock()
	}()

	data, err := wire.EncodeControlMessage(&wire.ControlMessage{Control: wire.ControlPing, Sequence: seq})
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if err := c.sender.Send(data); err != nil {
		return 0, err
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(timeout):
		return 0, ErrRequestTimeout
	case _, ok := <-ch:
		if !ok {
			return 0, ErrClientClosed
		}
		return time.Since(start), nil
	}
}

func (c *Client) checkOpen() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, ErrClientClosed
	}
	return c.timeout, nil
}

func (c *Client) sendRequest(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	timeout, err := c.checkOpen()
	if err != nil {
		return nil, err
	}

	respCh := make(chan *wire.Response, 1)

	c.pendingMu.Lock()
	c.pending[req.MessageID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.MessageID)
		c.pendingMu.Unlock()
	}()

	data, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	c.logRequest(req)
	if err := c.sender.Send(data); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: %s", ErrRequestTimeout, req.Path)
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrClientClosed
		}
		return resp, nil
	}
}

// Dispatch routes one incoming frame to the request or ping waiting for it.
func (c *Client) Dispatch(data []byte) error {
	msgType, err := wire.PeekMessageType(data)
	if err != nil {
		return err
	}

	switch msgType {
	case wire.MessageTypeResponse:
		resp, err := wire.DecodeResponse(data)
		if err != nil {
			return err
		}
		return c.HandleResponse(resp)

	case wire.MessageTypeControl:
		msg, err := wire.DecodeControlMessage(data)
		if err != nil {
			return err
		}
		if msg.Control == wire.ControlPong {
			c.handlePong(msg.Sequence)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s frame", ErrUnexpectedReply, msgType)
	}
}

// HandleResponse delivers a response to the pending request with the same id.
func (c *Client) HandleResponse(resp *wire.Response) error {
	c.pendingMu.Lock()
	ch, exists := c.pending[resp.MessageID]
	c.pendingMu.Unlock()

	if !exists {
		return ErrUnexpectedReply
	}

	select {
	case ch <- resp:
	default:
	}
	return nil
}

func (c *Client) handlePong(seq uint32) {
	c.pendingMu.Lock()
	ch, exists := c.pings[seq]
	c.pendingMu.Unlock()

	if exists {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Client) logRequest(req *wire.Request) {
	c.mu.RLock()
	logger, connID := c.logger, c.connID
	c.mu.RUnlock()
	if logger == nil {
		return
	}

	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleClient,
		Path:         req.Path,
		Message: &log.MessageEvent{
			Type:      log.MessageTypeRequest,
			MessageID: req.MessageID,
			Scheme:    req.Scheme,
			Path:      req.Path,
		},
	})
}

func (c *Client) logResponse(req *wire.Request, resp *wire.Response, elapsed time.Duration) {
	c.mu.RLock()
	logger, connID := c.logger, c.connID
	c.mu.RUnlock()
	if logger == nil {
		return
	}

	status := resp.Status
	msg := &log.MessageEvent{
		Type:           log.MessageTypeResponse,
		MessageID:      resp.MessageID,
		Status:         &status,
		ProcessingTime: &elapsed,
	}
	if resp.Table != nil {
		rows := resp.Table.Rows
		msg.Rows = &rows
		if fp, err := wire.Fingerprint(resp.Table); err == nil {
			msg.Fingerprint = fp
		}
	}
	if resp.Message != "" {
		msg.Payload = map[string]any{"message": resp.Message}
	}

	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleClient,
		Path:         req.Path,
		Message:      msg,
	})
}

// StatusError represents an error response from the server.
type StatusError struct {
	Status  wire.Status
	Message string
	Path    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Status.String()
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, msg)
	}
	return msg
}

// IsNotFound reports whether err is a StatusError with StatusNotFound.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == wire.StatusNotFound
}
