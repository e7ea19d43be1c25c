package handshake

import "errors"

// Errors returned during the opening handshake. Transport failures are
// wrapped with %w and remain matchable via errors.Is / errors.As.
var (
	// ErrUnexpectedEOF means the peer closed the connection before a
	// complete response head arrived.
	ErrUnexpectedEOF = errors.New("connection closed during handshake")

	// ErrResponseTooLarge means the response head exceeded MaxResponseSize
	// before the terminating blank line was seen.
	ErrResponseTooLarge = errors.New("handshake response too large")

	// ErrBadStatus means the server answered with a status other than
	// 101 Switching Protocols.
	ErrBadStatus = errors.New("handshake response status is not 101")

	// ErrBadHeaders means the response head could not be parsed, or the
	// Connection/Upgrade/Sec-WebSocket-Accept headers are missing or
	// malformed.
	ErrBadHeaders = errors.New("missing or malformed upgrade headers")

	// ErrAcceptMismatch means the Sec-WebSocket-Accept value did not match
	// the one derived from the request nonce.
	ErrAcceptMismatch = errors.New("sec-websocket-accept mismatch")

	// ErrInvalidUTF8 means a header value that must be text is not valid
	// UTF-8.
	ErrInvalidUTF8 = errors.New("header value is not valid utf-8")

	// ErrRequestTooLarge means the combined request size overflows the
	// size type. The request is never partially written.
	ErrRequestTooLarge = errors.New("handshake request too large")
)
