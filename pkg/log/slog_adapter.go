package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter prints protocol events through an slog.Logger, one "protocol"
// record per event at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log implements Logger.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := append(headerAttrs(event), payloadAttrs(event)...)
	a.logger.LogAttrs(ctx, slog.LevelDebug, "protocol", attrs...)
}

func headerAttrs(e Event) []slog.Attr {
	attrs := make([]slog.Attr, 0, 12)
	attrs = append(attrs,
		slog.String("conn_id", e.ConnectionID),
		slog.String("direction", e.Direction.String()),
		slog.String("layer", e.Layer.String()),
		slog.String("category", e.Category.String()),
	)
	attrs = appendNonEmpty(attrs, "model", e.Model)
	return appendNonEmpty(attrs, "path", e.Path)
}

func payloadAttrs(e Event) []slog.Attr {
	var attrs []slog.Attr
	switch {
	case e.Frame != nil:
		attrs = append(attrs, slog.Int("frame_size", e.Frame.Size), slog.Bool("truncated", e.Frame.Truncated))

	case e.Message != nil:
		m := e.Message
		attrs = append(attrs, slog.Uint64("msg_id", uint64(m.MessageID)), slog.String("msg_type", m.Type.String()))
		attrs = appendNonEmpty(attrs, "request_path", m.Path)
		if m.Status != nil {
			attrs = append(attrs, slog.String("status", m.Status.String()))
		}
		if m.Rows != nil {
			attrs = append(attrs, slog.Int("rows", *m.Rows))
		}
		if m.Fingerprint != 0 {
			attrs = append(attrs, slog.String("fingerprint", fmt.Sprintf("%016x", m.Fingerprint)))
		}
		if m.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *m.ProcessingTime))
		}

	case e.StateChange != nil:
		sc := e.StateChange
		attrs = append(attrs, slog.String("entity", sc.Entity.String()))
		attrs = appendNonEmpty(attrs, "old_state", sc.OldState)
		attrs = append(attrs, slog.String("new_state", sc.NewState))
		attrs = appendNonEmpty(attrs, "reason", sc.Reason)

	case e.ControlMsg != nil:
		attrs = append(attrs, slog.String("ctrl_type", e.ControlMsg.Type.String()))

	case e.Error != nil:
		er := e.Error
		attrs = append(attrs, slog.String("error_layer", er.Layer.String()), slog.String("error_msg", er.Message))
		attrs = appendNonEmpty(attrs, "error_context", er.Context)
		if er.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *er.Code))
		}
	}
	return attrs
}

func appendNonEmpty(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}

var _ Logger = (*SlogAdapter)(nil)
