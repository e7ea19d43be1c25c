package wstest

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
)

// Script describes how a ScriptServer answers an upgrade request.
type Script struct {
	// Response is written verbatim once the request head has arrived.
	Response []byte

	// Hold keeps the connection open after the response until the server
	// is closed. When false the connection closes right after writing.
	Hold bool
}

// ScriptServer accepts connections and plays the same canned handshake
// script on each: read the request head, write Response, then close or
// hold. It exists to exercise client behavior against malformed and
// hostile upgrade responses that a real server would never produce.
type ScriptServer struct {
	// URL is the ws:// URL clients should dial.
	URL string

	script   Script
	listener net.Listener
	done     chan struct{}
	wg       sync.WaitGroup

	closeOnce sync.Once

	mu      sync.Mutex
	request []byte
}

// StartScript starts a script server on an ephemeral loopback port.
func StartScript(script Script) (*ScriptServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listening for script server: %w", err)
	}
	s := &ScriptServer{
		URL:      fmt.Sprintf("ws://%s/echo", listener.Addr()),
		script:   script,
		listener: listener,
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// NewScript starts a script server and closes it when the test ends.
func NewScript(t *testing.T, script Script) *ScriptServer {
	t.Helper()
	server, err := StartScript(script)
	if err != nil {
		t.Fatalf("starting script server: %v", err)
	}
	t.Cleanup(server.Close)
	return server
}

// Addr returns the host:port the server is listening on.
func (s *ScriptServer) Addr() string {
	return s.listener.Addr().String()
}

// Request returns the raw request head received on the most recent
// connection. By the time a client's dial has returned, the request
// that dial sent is the one recorded.
func (s *ScriptServer) Request() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.request...)
}

// Close stops accepting, releases held connections and waits for the
// serve goroutines to finish. It is safe to call more than once.
func (s *ScriptServer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.listener.Close()
	})
	s.wg.Wait()
}

func (s *ScriptServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *ScriptServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	head, err := readRequestHead(conn)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.request = head
	s.mu.Unlock()
	if _, err := conn.Write(s.script.Response); err != nil {
		return
	}
	if s.script.Hold {
		<-s.done
	}
}

// readRequestHead consumes bytes until the blank line ending the request
// head has been seen and returns everything read. The head itself is not
// validated: the script plays out regardless of what the client sent.
func readRequestHead(conn net.Conn) ([]byte, error) {
	var head []byte
	chunk := make([]byte, 256)
	for {
		n, err := conn.Read(chunk)
		head = append(head, chunk[:n]...)
		if bytes.Contains(head, []byte("\r\n\r\n")) {
			return head, nil
		}
		if err != nil {
			return nil, err
		}
		if len(head) > 64*1024 {
			return nil, errors.New("request head too large")
		}
	}
}
