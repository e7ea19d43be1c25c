// Package log provides structured trace logging for WebSocket connections.
//
// This package defines the Logger interface and Event types for capturing
// connection-level events at multiple layers (transport, handshake, frame).
// It is separate from operational logging (slog) - trace capture provides
// a complete machine-readable record of a connection for debugging and
// analysis.
//
// # Basic Usage
//
// Applications configure tracing by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("conn.wslog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("conn.wslog"),
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Handshake: Upgrade request/response (HandshakeEvent)
//   - Frame: Data frames with truncated payloads (FrameEvent)
//   - Control: Ping/pong/close frames (ControlEvent)
//
// Connection state changes and errors have dedicated event types.
//
// # File Format
//
// Trace files use CBOR encoding with .wslog extension. The wsdial-trace
// CLI tool provides viewing, filtering, and export capabilities.
package log
