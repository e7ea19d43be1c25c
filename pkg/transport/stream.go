package transport

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"
	"time"
)

const (
	// DefaultBufferSize is the read and write buffer capacity used when
	// the caller passes no hint. It holds any realistic handshake
	// response and a comfortable amount of frame traffic.
	DefaultBufferSize = 16 * 1024

	// MinRecommendedBufferSize and MaxRecommendedBufferSize bound the
	// range in which buffer hints measurably help. They are guidance,
	// not limits: hints outside the range are honored as given.
	MinRecommendedBufferSize = 8 * 1024
	MaxRecommendedBufferSize = 64 * 1024
)

// kind selects the stream backend.
type kind uint8

const (
	kindPlain kind = iota
	kindSecure
)

// Stream is a buffered byte stream over exactly one of two backends:
// a plain TCP connection or a TLS connection layered on one. The
// variant is fixed when the stream is dialed and never changes.
type Stream struct {
	kind kind

	// tcp is always the underlying TCP connection. For the secure
	// variant, tlsConn layers on the same connection and all I/O and
	// deadline calls go through it.
	tcp     *net.TCPConn
	tlsConn *tls.Conn

	br *bufio.Reader
	bw *bufio.Writer
}

var _ io.ReadWriteCloser = (*Stream)(nil)

func newPlainStream(tcp *net.TCPConn, bufferSize int) *Stream {
	s := &Stream{kind: kindPlain, tcp: tcp}
	s.initBuffers(tcp, bufferSize)
	return s
}

func newSecureStream(tcp *net.TCPConn, tlsConn *tls.Conn, bufferSize int) *Stream {
	s := &Stream{kind: kindSecure, tcp: tcp, tlsConn: tlsConn}
	s.initBuffers(tlsConn, bufferSize)
	return s
}

func (s *Stream) initBuffers(conn net.Conn, bufferSize int) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	s.br = bufio.NewReaderSize(conn, bufferSize)
	s.bw = bufio.NewWriterSize(conn, bufferSize)
}

// conn returns the connection the active variant reads and writes.
func (s *Stream) conn() net.Conn {
	if s.kind == kindSecure {
		return s.tlsConn
	}
	return s.tcp
}

// Read fills p from the buffered reader.
func (s *Stream) Read(p []byte) (int, error) {
	return s.br.Read(p)
}

// Write appends p to the write buffer. Bytes reach the wire when the
// buffer fills or on the next Flush.
func (s *Stream) Write(p []byte) (int, error) {
	return s.bw.Write(p)
}

// Flush pushes all buffered writes to the connection.
func (s *Stream) Flush() error {
	return s.bw.Flush()
}

// Close closes the stream. On the secure variant this tears down the
// TLS layer, which closes the TCP connection beneath it. Buffered,
// unflushed writes are discarded.
func (s *Stream) Close() error {
	return s.conn().Close()
}

// CloseWrite flushes buffered writes and then shuts down the write
// side: a FIN on plain TCP, a close_notify alert on TLS. The read side
// stays open for whatever the peer still has to send.
func (s *Stream) CloseWrite() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.kind == kindSecure {
		return s.tlsConn.CloseWrite()
	}
	return s.tcp.CloseWrite()
}

// SetDeadline sets the read and write deadlines on the connection. A
// zero time clears them.
func (s *Stream) SetDeadline(t time.Time) error {
	return s.conn().SetDeadline(t)
}

// SetReadDeadline sets the read deadline on the connection.
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.conn().SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline on the connection.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.conn().SetWriteDeadline(t)
}

// LocalAddr returns the local address of the underlying connection.
func (s *Stream) LocalAddr() net.Addr {
	return s.tcp.LocalAddr()
}

// RemoteAddr returns the remote address of the underlying connection.
func (s *Stream) RemoteAddr() net.Addr {
	return s.tcp.RemoteAddr()
}

// Secure reports whether the stream is TLS-backed.
func (s *Stream) Secure() bool {
	return s.kind == kindSecure
}

// ConnectionState returns the TLS connection state of the secure
// variant. The second return is false for plain streams.
func (s *Stream) ConnectionState() (tls.ConnectionState, bool) {
	if s.kind != kindSecure {
		return tls.ConnectionState{}, false
	}
	return s.tlsConn.ConnectionState(), true
}

// NetConn exposes the connection the stream operates on: the TCP
// connection for plain streams, the TLS connection for secure ones.
// I/O done directly on it bypasses the stream's buffers; callers must
// Flush first and accept that bytes already sitting in the read buffer
// stay with the stream.
func (s *Stream) NetConn() net.Conn {
	return s.conn()
}

// GatherWrites reports whether WriteBuffers can hand multiple buffers
// to the kernel as one vectored write. True only for plain streams:
// under TLS each buffer would be sealed into its own record, trading
// one syscall for per-record padding and MAC overhead.
func (s *Stream) GatherWrites() bool {
	return s.kind == kindPlain
}

// WriteBuffers writes bufs to the stream. Pending buffered writes are
// flushed first so ordering holds. On plain streams the buffers then go
// out as a single vectored write on the socket; on secure streams they
// are coalesced through the write buffer and flushed. The contents of
// bufs are consumed either way.
func (s *Stream) WriteBuffers(bufs net.Buffers) (int64, error) {
	if err := s.Flush(); err != nil {
		return 0, err
	}
	if s.kind == kindPlain {
		return bufs.WriteTo(s.tcp)
	}
	var total int64
	for _, b := range bufs {
		n, err := s.bw.Write(b)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, s.Flush()
}
