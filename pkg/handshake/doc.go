// Package handshake implements the client side of the RFC 6455 opening
// handshake: Sec-WebSocket-Key generation, the HTTP/1.1 Upgrade request,
// and strict validation of the 101 response.
//
// # Request
//
//	GET /chat HTTP/1.1
//	Host: server.example.com
//	Upgrade: websocket
//	Connection: Upgrade
//	Sec-WebSocket-Version: 13
//	Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==
//
// Extra headers supplied by the caller follow the fixed block, verbatim
// and in order. The request size is computed with overflow-checked
// arithmetic before anything is sent; the whole request then goes out as
// a single write and a single flush.
//
// # Response
//
// The response head is accumulated until the terminating blank line, with
// a 16 KiB ceiling enforced on every growth step, then validated in a
// fixed order: status 101, a Connection header containing the "upgrade"
// token, an Upgrade header equal to "websocket" (both case-insensitive),
// and a Sec-WebSocket-Accept byte-identical to the value derived from the
// request nonce. Bytes past the head (servers may pipeline their first
// frame behind the 101) are handed back to the caller for the frame
// engine, on validation failure as well as on success.
//
// Failures map to typed sentinel errors (ErrBadStatus, ErrBadHeaders,
// ErrAcceptMismatch, ...) so callers can discriminate with errors.Is.
// Nothing is logged and nothing is retried here.
package handshake
