package log

import (
	"bufio"
	"errors"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// ErrLoggerClosed is returned by Flush after Close.
var ErrLoggerClosed = errors.New("protocol log closed")

// FileOptions tune a FileLogger.
type FileOptions struct {
	// Truncate starts a new capture instead of appending to an existing one.
	Truncate bool

	// BufferSize of the write buffer. Zero uses 64 KiB. Events reach the
	// file when the buffer fills, on Flush and on Close.
	BufferSize int
}

// FileLogger appends events to a capture file. Safe for concurrent use.
//
// Write errors never reach the caller of Log; the first one is kept and
// reported by Flush and Close.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	enc     *cbor.Encoder
	written int
	err     error
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string) (*FileLogger, error) {
	return OpenFileLogger(path, FileOptions{})
}

// OpenFileLogger opens path with the given options.
func OpenFileLogger(path string, opts FileOptions) (*FileLogger, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if opts.Truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	size := opts.BufferSize
	if size <= 0 {
		size = 64 * 1024
	}
	buf := bufio.NewWriterSize(f, size)
	return &FileLogger{file: f, buf: buf, enc: NewEncoder(buf)}, nil
}

// Log encodes the event into the buffer. Events logged after Close are
// dropped.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.err != nil {
		return
	}
	if err := l.enc.Encode(event); err != nil {
		l.err = err
		return
	}
	l.written++
}

// Written returns how many events were encoded.
func (l *FileLogger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Flush pushes buffered events to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLoggerClosed
	}
	return l.flushLocked()
}

func (l *FileLogger) flushLocked() error {
	if l.err != nil {
		return l.err
	}
	if err := l.buf.Flush(); err != nil {
		l.err = err
	}
	return l.err
}

// Close flushes and closes the file. Further calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return errors.Join(l.flushLocked(), l.file.Close())
}

var _ Logger = (*FileLogger)(nil)
