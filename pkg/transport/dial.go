package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/wsdial/wsdial/pkg/wsurl"
)

// Dialer establishes streams for parsed WebSocket targets. The zero
// value is ready to use: default buffer size, default TLS connector,
// zero net.Dialer.
type Dialer struct {
	// BufferSize is the capacity hint for the stream's read and write
	// buffers. Zero selects DefaultBufferSize.
	BufferSize int

	// Connector supplies the TLS client configuration for wss targets.
	// Nil selects DefaultConnector.
	Connector *Connector

	// NetDialer performs the underlying TCP dial. Nil selects a zero
	// net.Dialer; cancellation and deadlines arrive via the context.
	NetDialer *net.Dialer
}

// DialTarget connects to the target and returns a stream matching its
// scheme: plain for ws, TLS for wss. The context governs the TCP dial
// and the TLS handshake; if it carries a deadline, that deadline is
// also installed on the socket so the caller's upgrade I/O inherits it.
// Clearing it once the connection is established is the caller's job.
func (d *Dialer) DialTarget(ctx context.Context, target wsurl.Target) (*Stream, error) {
	netDialer := d.NetDialer
	if netDialer == nil {
		netDialer = &net.Dialer{}
	}

	conn, err := netDialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target.Addr(), err)
	}
	tcp := conn.(*net.TCPConn)

	if deadline, ok := ctx.Deadline(); ok {
		if err := tcp.SetDeadline(deadline); err != nil {
			tcp.Close()
			return nil, err
		}
	}

	if !target.Scheme.Secure() {
		// Upgrade requests and control frames must not sit out a
		// Nagle round trip.
		if err := tcp.SetNoDelay(true); err != nil {
			tcp.Close()
			return nil, fmt.Errorf("setting TCP_NODELAY: %w", err)
		}
		return newPlainStream(tcp, d.BufferSize), nil
	}

	connector := d.Connector
	if connector == nil {
		connector = DefaultConnector()
	}
	tlsConn, err := connector.Client(tcp, target.ServerName())
	if err != nil {
		tcp.Close()
		return nil, err
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		tcp.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", target.Addr(), err)
	}
	return newSecureStream(tcp, tlsConn, d.BufferSize), nil
}
