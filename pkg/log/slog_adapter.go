package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see connection traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.Target != "" {
		attrs = append(attrs, slog.String("target", event.Target))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", event.RemoteAddr))
	}

	// Add type-specific attributes
	switch {
	case event.Handshake != nil:
		attrs = append(attrs,
			slog.String("phase", event.Handshake.Phase.String()),
			slog.Int("size", event.Handshake.Size),
		)
		if event.Handshake.Status != 0 {
			attrs = append(attrs, slog.Int("status", event.Handshake.Status))
		}
		if event.Handshake.Duration != nil {
			attrs = append(attrs, slog.Duration("duration", *event.Handshake.Duration))
		}
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Uint64("opcode", uint64(event.Frame.OpCode)),
			slog.Bool("fin", event.Frame.Fin),
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Control != nil:
		attrs = append(attrs, slog.String("ctrl_type", event.Control.Type.String()))
		if event.Control.CloseCode != nil {
			attrs = append(attrs, slog.Uint64("close_code", uint64(*event.Control.CloseCode)))
		}
		if event.Control.Reason != "" {
			attrs = append(attrs, slog.String("close_reason", event.Control.Reason))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
