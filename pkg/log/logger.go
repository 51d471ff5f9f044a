package log

// Logger receives protocol events from the transport, interaction and model
// layers. Implementations must be safe for concurrent use and should return
// quickly: Log is called inline on the send and receive paths.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a plain function to Logger.
type LoggerFunc func(Event)

// Log calls f.
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger discards every event. The zero value is ready to use.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// Tee returns a Logger that hands each event to every non-nil logger in
// order. It returns nil when no logger remains, so callers can keep their
// "logger != nil" checks, and the logger itself when only one remains.
func Tee(loggers ...Logger) Logger {
	var out multiLogger
	for _, l := range loggers {
		switch l := l.(type) {
		case nil, NoopLogger:
		case multiLogger:
			out = append(out, l...)
		default:
			out = append(out, l)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

type multiLogger []Logger

func (m multiLogger) Log(event Event) {
	for _, l := range m {
		l.Log(event)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = multiLogger(nil)
)
