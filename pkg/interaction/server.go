package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/wire"
)

// Provider errors. A TableProvider wraps these so the server can pick a status.
var (
	ErrTableNotFound = errors.New("table not found")
	ErrInvalidPath   = errors.New("invalid table path")
)

// TableProvider answers table requests.
type TableProvider interface {
	Table(ctx context.Context, scheme, path string, query map[string]string) (*wire.Table, error)
}

// TableProviderFunc adapts a function to TableProvider.
type TableProviderFunc func(ctx context.Context, scheme, path string, query map[string]string) (*wire.Table, error)

// Table calls f.
func (f TableProviderFunc) Table(ctx context.Context, scheme, path string, query map[string]string) (*wire.Table, error) {
	return f(ctx, scheme, path, query)
}

// Server handles incoming table requests.
type Server struct {
	mu sync.RWMutex

	provider TableProvider
	schemes  map[string]bool
	logger   log.Logger
}

// NewServer creates a new interaction server backed by provider.
// Only the default scheme is accepted until SetSchemes is called.
func NewServer(provider TableProvider) *Server {
	return &Server{
		provider: provider,
		schemes:  map[string]bool{wire.DefaultScheme: true},
	}
}

// SetSchemes replaces the set of accepted request schemes.
func (s *Server) SetSchemes(schemes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemes = make(map[string]bool, len(schemes))
	for _, scheme := range schemes {
		s.schemes[scheme] = true
	}
}

// SetLogger enables wire-layer protocol logging of handled requests.
func (s *Server) SetLogger(logger log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// HandleRequest processes an incoming request and returns a response.
func (s *Server) HandleRequest(ctx context.Context, req *wire.Request) *wire.Response {
	start := time.Now()
	resp := s.handle(ctx, req)
	s.logHandled(ctx, req, resp, time.Since(start))
	return resp
}

func (s *Server) handle(ctx context.Context, req *wire.Request) *wire.Response {
	scheme := req.Scheme
	if scheme == "" {
		scheme = wire.DefaultScheme
	}

	s.mu.RLock()
	accepted := s.schemes[scheme]
	s.mu.RUnlock()
	if !accepted {
		return errorResponse(req.MessageID, wire.StatusUnsupported, fmt.Sprintf("unsupported scheme %q", scheme))
	}
	if req.Path == "" {
		return errorResponse(req.MessageID, wire.StatusInvalidRequest, wire.ErrEmptyPath.Error())
	}

	table, err := s.provider.Table(ctx, scheme, req.Path, req.Query)
	if err != nil {
		return errorResponse(req.MessageID, statusFor(err), err.Error())
	}
	if table == nil {
		return errorResponse(req.MessageID, wire.StatusNotFound, fmt.Sprintf("%s: %v", req.Path, ErrTableNotFound))
	}
	if err := table.Validate(); err != nil {
		return errorResponse(req.MessageID, wire.StatusInternalError, fmt.Sprintf("%s: %v", req.Path, err))
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
		Table:     table,
	}
}

// HandleFrame decodes a request frame and encodes the response frame.
func (s *Server) HandleFrame(ctx context.Context, data []byte) ([]byte, error) {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	return wire.EncodeResponse(s.HandleRequest(ctx, req))
}

func statusFor(err error) wire.Status {
	switch {
	case errors.Is(err, ErrTableNotFound):
		return wire.StatusNotFound
	case errors.Is(err, ErrInvalidPath):
		return wire.StatusInvalidRequest
	case errors.Is(err, context.DeadlineExceeded):
		return wire.StatusTimeout
	default:
		return wire.StatusInternalError
	}
}

func (s *Server) logHandled(_ context.Context, req *wire.Request, resp *wire.Response, elapsed time.Duration) {
	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()
	if logger == nil {
		return
	}

	status := resp.Status
	msg := &log.MessageEvent{
		Type:           log.MessageTypeResponse,
		MessageID:      resp.MessageID,
		Path:           req.Path,
		Status:         &status,
		ProcessingTime: &elapsed,
	}
	if resp.Table != nil {
		rows := resp.Table.Rows
		msg.Rows = &rows
	}

	logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		LocalRole: log.RoleServer,
		Path:      req.Path,
		Message:   msg,
	})
}

func errorResponse(msgID uint32, status wire.Status, message string) *wire.Response {
	return &wire.Response{
		MessageID: msgID,
		Status:    status,
		Message:   message,
	}
}
