package wsurl

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Errors returned by Parse.
var (
	// ErrScheme indicates the URL does not start with ws:// or wss://.
	ErrScheme = errors.New("url scheme must be ws:// or wss://")

	// ErrPort indicates the port component is not a decimal number in 0-65535.
	ErrPort = errors.New("invalid port in url")
)

// Scheme identifies the transport demanded by a WebSocket URL.
type Scheme uint8

const (
	// SchemeWS is a plaintext WebSocket URL (ws://).
	SchemeWS Scheme = 0
	// SchemeWSS is a TLS WebSocket URL (wss://).
	SchemeWSS Scheme = 1
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeWS:
		return "ws"
	case SchemeWSS:
		return "wss"
	default:
		return "UNKNOWN"
	}
}

// Secure reports whether the scheme requires TLS.
func (s Scheme) Secure() bool {
	return s == SchemeWSS
}

// DefaultPort returns the port implied when the URL carries none.
func (s Scheme) DefaultPort() uint16 {
	if s == SchemeWSS {
		return 443
	}
	return 80
}

const (
	prefixWS  = "ws://"
	prefixWSS = "wss://"
)

// Target is the result of parsing a WebSocket URL: everything the dial
// and handshake layers need, with no normalization applied.
type Target struct {
	// Scheme selects the transport backend.
	Scheme Scheme

	// Host is the authority without the port, exactly as written.
	// Brackets around an IPv6 literal are preserved.
	Host string

	// Port is the explicit port, or the scheme default.
	Port uint16

	// PathAndQuery is the request target starting at "/", query included.
	PathAndQuery string
}

// Parse splits a WebSocket URL into its dial components.
//
// The scheme prefix is matched case-sensitively. The authority ends at
// the first "/" after the scheme; everything from that "/" on is the
// request target (default "/"). Within the authority, everything after
// the last ":" must parse as a decimal uint16 port; without a ":" the
// scheme default applies. Note that an IPv6 literal therefore needs an
// explicit port ("ws://[::1]:80/"), since the bracketed form alone ends
// in something that is not a port.
func Parse(raw string) (Target, error) {
	var t Target
	switch {
	case strings.HasPrefix(raw, prefixWS):
		t.Scheme = SchemeWS
		raw = raw[len(prefixWS):]
	case strings.HasPrefix(raw, prefixWSS):
		t.Scheme = SchemeWSS
		raw = raw[len(prefixWSS):]
	default:
		return Target{}, ErrScheme
	}

	hostport := raw
	t.PathAndQuery = "/"
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		hostport = raw[:i]
		t.PathAndQuery = raw[i:]
	}

	t.Host = hostport
	t.Port = t.Scheme.DefaultPort()
	if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		port, err := strconv.ParseUint(hostport[i+1:], 10, 16)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %q", ErrPort, hostport[i+1:])
		}
		t.Host = hostport[:i]
		t.Port = uint16(port)
	}

	return t, nil
}

// Addr returns the "host:port" dial address for the target. Brackets
// around an IPv6 literal are stripped first so net.JoinHostPort does not
// double them.
func (t Target) Addr() string {
	return net.JoinHostPort(t.bareHost(), strconv.FormatUint(uint64(t.Port), 10))
}

// ServerName returns the name presented for TLS certificate verification:
// the host with IPv6 brackets stripped.
func (t Target) ServerName() string {
	return t.bareHost()
}

// HostHeader returns the value for the Host header field of the upgrade
// request: the host as written, with the port appended when it differs
// from the scheme default.
func (t Target) HostHeader() string {
	if t.Port == t.Scheme.DefaultPort() {
		return t.Host
	}
	return t.Host + ":" + strconv.FormatUint(uint64(t.Port), 10)
}

// String reassembles the target as a URL.
func (t Target) String() string {
	return t.Scheme.String() + "://" + t.HostHeader() + t.PathAndQuery
}

func (t Target) bareHost() string {
	if strings.HasPrefix(t.Host, "[") && strings.HasSuffix(t.Host, "]") {
		return t.Host[1 : len(t.Host)-1]
	}
	return t.Host
}
