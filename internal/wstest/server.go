package wstest

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/gobwas/ws/wsutil"

	"github.com/wsdial/wsdial/pkg/handshake"
)

// Server is an in-process WebSocket echo server bound to a loopback port.
// It upgrades each incoming connection and echoes every data message back
// with the same opcode. Control frames are answered by the echo loop: pings
// get pongs, a close handshake ends the connection.
type Server struct {
	// URL is the ws:// or wss:// URL clients should dial.
	URL string

	listener net.Listener
	secure   bool

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool

	wg sync.WaitGroup
}

// StartEcho starts a plain-TCP echo server on an ephemeral loopback port.
func StartEcho() (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listening for echo server: %w", err)
	}
	return startServer(listener, false), nil
}

// StartEchoTLS starts a TLS echo server with a fresh self-signed
// certificate. The returned TLS config trusts that certificate and is
// meant for the connecting client.
func StartEchoTLS() (*Server, *tls.Config, error) {
	serverConfig, clientConfig, err := NewTLSConfigs()
	if err != nil {
		return nil, nil, err
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, fmt.Errorf("listening for echo server: %w", err)
	}
	return startServer(tls.NewListener(listener, serverConfig), true), clientConfig, nil
}

// NewEcho starts a plain echo server and closes it when the test ends.
func NewEcho(t *testing.T) *Server {
	t.Helper()
	server, err := StartEcho()
	if err != nil {
		t.Fatalf("starting echo server: %v", err)
	}
	t.Cleanup(server.Close)
	return server
}

// NewEchoTLS starts a TLS echo server and closes it when the test ends.
func NewEchoTLS(t *testing.T) (*Server, *tls.Config) {
	t.Helper()
	server, clientConfig, err := StartEchoTLS()
	if err != nil {
		t.Fatalf("starting TLS echo server: %v", err)
	}
	t.Cleanup(server.Close)
	return server, clientConfig
}

func startServer(listener net.Listener, secure bool) *Server {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	s := &Server{
		URL:      fmt.Sprintf("%s://%s/echo", scheme, listener.Addr()),
		listener: listener,
		secure:   secure,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s
}

// Addr returns the host:port the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops accepting, closes every live connection and waits for the
// serve goroutines to finish. It is safe to call more than once.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	s.listener.Close()
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) forget(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer s.forget(conn)
	defer conn.Close()

	reader, err := upgrade(conn)
	if err != nil {
		return
	}

	// The upgrade may have buffered bytes past the request head, so all
	// reads must keep going through the same bufio.Reader.
	rw := struct {
		io.Reader
		io.Writer
	}{reader, conn}

	for {
		msg, op, err := wsutil.ReadClientData(rw)
		if err != nil {
			return
		}
		if err := wsutil.WriteServerMessage(rw, op, msg); err != nil {
			return
		}
	}
}

// upgrade performs the server side of the opening handshake and returns
// the bufio.Reader holding any bytes received after the request head.
func upgrade(conn net.Conn) (*bufio.Reader, error) {
	reader := bufio.NewReader(conn)
	req, err := http.ReadRequest(reader)
	if err != nil {
		return nil, fmt.Errorf("reading upgrade request: %w", err)
	}
	nonce := req.Header.Get("Sec-WebSocket-Key")
	if nonce == "" {
		io.WriteString(conn, "HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n")
		return nil, errors.New("upgrade request has no Sec-WebSocket-Key")
	}

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + handshake.AcceptKey(nonce) + "\r\n" +
		"\r\n"
	if _, err := io.WriteString(conn, response); err != nil {
		return nil, fmt.Errorf("writing upgrade response: %w", err)
	}
	return reader, nil
}
