package client

import "github.com/gobwas/ws"

// MessageType identifies the payload type of a data message. Values
// match the WebSocket opcodes.
type MessageType uint8

const (
	// MessageText is a UTF-8 text message.
	MessageText MessageType = 1
	// MessageBinary is a binary message.
	MessageBinary MessageType = 2
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageText:
		return "TEXT"
	case MessageBinary:
		return "BINARY"
	default:
		return "UNKNOWN"
	}
}

func (m MessageType) opCode() (ws.OpCode, bool) {
	switch m {
	case MessageText:
		return ws.OpText, true
	case MessageBinary:
		return ws.OpBinary, true
	default:
		return 0, false
	}
}

func messageTypeOf(op ws.OpCode) MessageType {
	switch op {
	case ws.OpText:
		return MessageText
	case ws.OpBinary:
		return MessageBinary
	default:
		return 0
	}
}
