// Package transport provides the byte stream beneath a WebSocket
// connection: plain TCP or TLS over TCP, selected by the URL scheme.
//
// # Stream Model
//
//	┌────────────────────────────┐
//	│      WebSocket frames      │  (pkg/client)
//	├────────────────────────────┤
//	│   HTTP/1.1 Upgrade bytes   │  (pkg/handshake)
//	├────────────────────────────┤
//	│   Stream: bufio over       │
//	│   TCP  ──or──  TLS/TCP     │  (this package)
//	└────────────────────────────┘
//
// Stream is a closed sum over exactly those two backends. The variant is
// chosen when dialing and never changes; per-operation dispatch is a tag
// switch rather than interface virtual dispatch, so nothing allocates on
// the hot path. Reads and writes are buffered with a tunable capacity
// (default 16 KiB) and buffered writes reach the wire only on Flush.
//
// # TLS
//
// wss dials go through a Connector, an immutable TLS client
// configuration. DefaultConnector is built once per process from the
// system root pool and shared by every dial that does not bring its own;
// tests and pinned deployments pass NewConnector with custom roots.
//
// # Write Gathering
//
// Plain streams report GatherWrites true and support vectored writes via
// WriteBuffers, letting a frame header and its payload go out in one
// system call without concatenating them. TLS streams report false: each
// gathered buffer would become its own TLS record, so callers should
// coalesce into the write buffer instead.
package transport
