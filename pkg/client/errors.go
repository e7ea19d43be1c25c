package client

import (
	"errors"
	"fmt"
)

// Errors returned by Conn operations.
var (
	// ErrClosed indicates the connection was closed locally.
	ErrClosed = errors.New("connection is closed")

	// ErrMessageType indicates a write with a type that is neither text
	// nor binary.
	ErrMessageType = errors.New("message type must be text or binary")

	// ErrControlPayload indicates a control frame payload over the
	// 125-byte protocol limit.
	ErrControlPayload = errors.New("control payload exceeds 125 bytes")
)

// CloseError is returned by ReadMessage when the server sends a close
// frame. The close handshake has already been completed by the time it
// is returned; the caller still owns the transport and should call
// Close to release it.
type CloseError struct {
	// Code is the close status code, or 0 when the frame carried none.
	Code uint16

	// Reason is the UTF-8 reason text, usually empty.
	Reason string
}

func (e CloseError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("connection closed by server: %d %s", e.Code, e.Reason)
	case e.Code != 0:
		return fmt.Sprintf("connection closed by server: %d", e.Code)
	default:
		return "connection closed by server"
	}
}
