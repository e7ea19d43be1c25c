// Package wsurl parses WebSocket URLs into dialable targets.
//
// Only the two WebSocket schemes are recognized, case-sensitively:
//
//	ws://host[:port][/path[?query]]   plaintext, default port 80
//	wss://host[:port][/path[?query]]  TLS, default port 443
//
// The grammar is deliberately simpler than net/url: the authority ends at
// the first "/", the port is whatever follows the last ":" in the
// authority, and no percent-decoding or host validation happens at all.
// What the caller wrote is what goes on the wire in the request line and
// Host header; a malformed host surfaces later, at dial time or during
// TLS verification.
package wsurl
