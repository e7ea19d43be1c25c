package client

// State tracks where a connection is in its lifecycle.
type State uint8

const (
	// StateConnecting means the transport is being established.
	StateConnecting State = 0
	// StateHandshaking means the upgrade is in flight.
	StateHandshaking State = 1
	// StateOpen means the connection is ready for messages.
	StateOpen State = 2
	// StateClosed means the transport has been released.
	StateClosed State = 3
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
