// Package log records protocol events for the model service.
//
// It is separate from operational logging, which uses log/slog throughout.
// A protocol capture is a machine-readable trace of what crossed the wire
// and what the client did with it:
//
//   - transport: raw frames (FrameEvent) and ping/pong/close (ControlMsgEvent)
//   - wire: decoded requests and responses (MessageEvent)
//   - service: connection, session and table state (StateChangeEvent)
//
// Failures at any layer are ErrorEventData events.
//
// Components accept a Logger and treat nil as "do not record". Sinks:
//
//	file, _ := log.NewFileLogger("client.mlog")  // CBOR stream
//	dbg := log.NewSlogAdapter(slog.Default())    // debug records
//	cfg.ProtocolLogger = log.Tee(file, dbg)
//
// Tests use a Recorder. Capture files are a plain sequence of CBOR encoded
// events with integer keys; Reader streams them back and the meme-log
// command views, filters, exports and summarises them.
package log
