package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/meme-go/meme/pkg/log"
)

const (
	// LengthPrefixSize is the big-endian frame length in front of every
	// payload.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize bounds one frame. A full-machine RMAT table is a
	// few MiB of CBOR, well below this.
	DefaultMaxMessageSize = 16 << 20

	// MaxLogFrameDataSize is how much of a frame a protocol log keeps.
	MaxLogFrameDataSize = 4096

	readBufferSize = 32 << 10
)

// Framing errors.
var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrFrameTruncated  = errors.New("frame truncated")
)

// Framer reads and writes length-prefixed frames on one stream. Writes are
// serialized; reads must come from a single goroutine.
type Framer struct {
	r       *bufio.Reader
	w       io.Writer
	maxSize uint32
	prefix  [LengthPrefixSize]byte

	wmu sync.Mutex

	logger log.Logger
	connID string
}

// NewFramer creates a framer with DefaultMaxMessageSize.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, 0)
}

// NewFramerWithMaxSize creates a framer that rejects frames above maxSize
// in both directions. Zero means DefaultMaxMessageSize.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint32) *Framer {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Framer{
		r:       bufio.NewReaderSize(rw, readBufferSize),
		w:       rw,
		maxSize: maxSize,
	}
}

// SetLogger records every frame under connID. Nil disables recording. Call
// it before the first read or write.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.logger = logger
	f.connID = connID
}

// MaxMessageSize returns the frame limit.
func (f *Framer) MaxMessageSize() uint32 { return f.maxSize }

// WriteFrame sends one frame. Prefix and payload go out in a single
// vectored write so a frame is never interleaved with another.
func (f *Framer) WriteFrame(data []byte) error {
	if err := f.checkSize(len(data)); err != nil {
		return err
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	bufs := net.Buffers{prefix[:], data}

	f.wmu.Lock()
	_, err := bufs.WriteTo(f.w)
	f.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	f.record(data, log.DirectionOut)
	return nil
}

// ReadFrame returns the next payload. A stream that ends cleanly between
// frames yields io.EOF; one that ends inside a frame yields
// ErrFrameTruncated.
func (f *Framer) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.r, f.prefix[:]); err != nil {
		switch {
		case err == io.EOF:
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(f.prefix[:])
	if err := f.checkSize(int(n)); err != nil {
		return nil, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}

	f.record(payload, log.DirectionIn)
	return payload, nil
}

func (f *Framer) checkSize(n int) error {
	if n == 0 {
		return ErrMessageEmpty
	}
	if uint64(n) > uint64(f.maxSize) {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, f.maxSize)
	}
	return nil
}

func (f *Framer) record(data []byte, dir log.Direction) {
	if f.logger == nil {
		return
	}
	kept := data
	if len(kept) > MaxLogFrameDataSize {
		kept = kept[:MaxLogFrameDataSize]
	}
	f.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      FrameSize(len(data)),
			Data:      kept,
			Truncated: len(kept) < len(data),
		},
	})
}

// FrameSize returns the bytes a payload occupies on the wire.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
