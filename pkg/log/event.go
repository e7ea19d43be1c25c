package log

import "time"

// Event represents a trace event captured at any layer of a WebSocket
// connection. CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates traffic flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Target is the URL the connection was dialed for.
	Target string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Handshake   *HandshakeEvent   `cbor:"8,keyasint,omitempty"`  // Upgrade request/response
	Frame       *FrameEvent       `cbor:"9,keyasint,omitempty"`  // Data frames
	Control     *ControlEvent     `cbor:"10,keyasint,omitempty"` // Ping/pong/close
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Connection lifecycle
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of traffic flow.
type Direction uint8

const (
	// DirectionIn indicates incoming traffic.
	DirectionIn Direction = 0
	// DirectionOut indicates outgoing traffic.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer of the connection captured the event.
type Layer uint8

const (
	// LayerTransport is the byte stream layer (TCP or TLS).
	LayerTransport Layer = 0
	// LayerHandshake is the HTTP/1.1 upgrade layer.
	LayerHandshake Layer = 1
	// LayerFrame is the WebSocket framing layer.
	LayerFrame Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerHandshake:
		return "HANDSHAKE"
	case LayerFrame:
		return "FRAME"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryHandshake indicates an upgrade request or response.
	CategoryHandshake Category = 0
	// CategoryFrame indicates a data frame (text or binary).
	CategoryFrame Category = 1
	// CategoryControl indicates a control frame (ping/pong/close).
	CategoryControl Category = 2
	// CategoryState indicates a connection state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryHandshake:
		return "HANDSHAKE"
	case CategoryFrame:
		return "FRAME"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// HandshakeEvent captures one side of the opening handshake.
type HandshakeEvent struct {
	// Phase distinguishes the request from the response.
	Phase HandshakePhase `cbor:"1,keyasint"`

	// Key is the Sec-WebSocket-Key nonce sent with the request.
	Key string `cbor:"2,keyasint,omitempty"`

	// Accept is the Sec-WebSocket-Accept value (response only).
	Accept string `cbor:"3,keyasint,omitempty"`

	// Status is the HTTP status line code (response only).
	Status int `cbor:"4,keyasint,omitempty"`

	// Size is the serialized size in bytes.
	Size int `cbor:"5,keyasint"`

	// Duration is the time from writing the request to validating the
	// response (response only). Stored as nanoseconds.
	Duration *time.Duration `cbor:"6,keyasint,omitempty"`
}

// HandshakePhase distinguishes the two halves of the opening handshake.
type HandshakePhase uint8

const (
	// PhaseRequest indicates the client's upgrade request.
	PhaseRequest HandshakePhase = 0
	// PhaseResponse indicates the server's upgrade response.
	PhaseResponse HandshakePhase = 1
)

// String returns the phase name.
func (p HandshakePhase) String() string {
	switch p {
	case PhaseRequest:
		return "REQUEST"
	case PhaseResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// MaxFrameDataCapture bounds the payload bytes copied into a FrameEvent.
// Larger payloads are truncated and marked as such.
const MaxFrameDataCapture = 4096

// FrameEvent captures a data frame at the framing layer.
type FrameEvent struct {
	// OpCode is the WebSocket opcode (1 text, 2 binary).
	OpCode uint8 `cbor:"1,keyasint"`

	// Fin indicates the final fragment of a message.
	Fin bool `cbor:"2,keyasint"`

	// Size is the full payload size in bytes.
	Size int `cbor:"3,keyasint"`

	// Data is the payload (truncated to MaxFrameDataCapture).
	Data []byte `cbor:"4,keyasint,omitempty"`

	// Truncated indicates whether Data was truncated.
	Truncated bool `cbor:"5,keyasint,omitempty"`
}

// NewFrameEvent builds a FrameEvent from a frame's payload, copying at
// most MaxFrameDataCapture bytes of it.
func NewFrameEvent(opCode uint8, fin bool, payload []byte) *FrameEvent {
	fe := &FrameEvent{OpCode: opCode, Fin: fin, Size: len(payload)}
	if len(payload) > MaxFrameDataCapture {
		fe.Data = append([]byte(nil), payload[:MaxFrameDataCapture]...)
		fe.Truncated = true
	} else if len(payload) > 0 {
		fe.Data = append([]byte(nil), payload...)
	}
	return fe
}

// ControlEvent captures a control frame.
type ControlEvent struct {
	// Type of control frame.
	Type ControlType `cbor:"1,keyasint"`

	// CloseCode is the status code carried by a close frame.
	CloseCode *uint16 `cbor:"2,keyasint,omitempty"`

	// Reason is the UTF-8 reason text carried by a close frame.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ControlType indicates the type of control frame.
type ControlType uint8

const (
	// ControlPing indicates a ping frame.
	ControlPing ControlType = 0
	// ControlPong indicates a pong frame.
	ControlPong ControlType = 1
	// ControlClose indicates a close frame.
	ControlClose ControlType = 2
)

// String returns the control frame type name.
func (c ControlType) String() string {
	switch c {
	case ControlPing:
		return "PING"
	case ControlPong:
		return "PONG"
	case ControlClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
