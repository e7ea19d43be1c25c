package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"

	"github.com/wsdial/wsdial/internal/wstest"
	"github.com/wsdial/wsdial/pkg/handshake"
	"github.com/wsdial/wsdial/pkg/log"
	"github.com/wsdial/wsdial/pkg/transport"
	"github.com/wsdial/wsdial/pkg/wsurl"
)

// captureLogger records trace events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *captureLogger) snapshot() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestDialPlainEcho(t *testing.T) {
	server := wstest.NewEcho(t)

	conn, err := Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if conn.Stream().Secure() {
		t.Error("expected a plaintext stream for ws://")
	}
	if got := conn.State(); got != StateOpen {
		t.Errorf("State() = %v, want OPEN", got)
	}
	if conn.ConnID() == "" {
		t.Error("expected a connection ID")
	}

	if err := conn.WriteText("hello"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if messageType != MessageText {
		t.Errorf("message type = %v, want TEXT", messageType)
	}
	if string(payload) != "hello" {
		t.Errorf("payload = %q, want 'hello'", payload)
	}

	binary := []byte{0x00, 0xFF, 0x10, 0x20}
	if err := conn.WriteBinary(binary); err != nil {
		t.Fatalf("WriteBinary failed: %v", err)
	}
	messageType, payload, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if messageType != MessageBinary {
		t.Errorf("message type = %v, want BINARY", messageType)
	}
	if !bytes.Equal(payload, binary) {
		t.Errorf("payload = %v, want %v", payload, binary)
	}
}

func TestDialSecureEcho(t *testing.T) {
	server, clientConfig := wstest.NewEchoTLS(t)

	c := New(Config{Connector: transport.NewConnector(clientConfig)})
	conn, err := c.Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if !conn.Stream().Secure() {
		t.Error("expected a TLS stream for wss://")
	}
	if _, ok := conn.Stream().ConnectionState(); !ok {
		t.Error("expected a TLS connection state")
	}

	if err := conn.WriteText("over tls"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if string(payload) != "over tls" {
		t.Errorf("payload = %q, want 'over tls'", payload)
	}
}

// The handshake and framing are exercised against gorilla/websocket so
// that client and test server do not share an implementation.
func TestDialGorillaEchoServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer serverConn.Close()
		for {
			messageType, payload, err := serverConn.ReadMessage()
			if err != nil {
				return
			}
			if err := serverConn.WriteMessage(messageType, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(httpServer.Close)

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, err := Dial(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("Dial against gorilla server failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteText("interop"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if messageType != MessageText || string(payload) != "interop" {
		t.Errorf("echo = %v %q, want TEXT 'interop'", messageType, payload)
	}

	if err := conn.SendClose(1000, "bye"); err != nil {
		t.Fatalf("SendClose failed: %v", err)
	}
	var closeErr CloseError
	if _, _, err := conn.ReadMessage(); !errors.As(err, &closeErr) {
		t.Fatalf("expected CloseError after close handshake, got %v", err)
	}
	if closeErr.Code != 1000 {
		t.Errorf("close code = %d, want 1000", closeErr.Code)
	}
}

// Per-call headers are appended after the configured set, so a name
// used by both arrives in config-then-call order.
func TestDialMergesConfigAndPerCallHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn.Close()
	}))
	t.Cleanup(httpServer.Close)
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")

	c := New(Config{Header: []handshake.Header{
		{Name: "Origin", Value: "https://example.com"},
		{Name: "X-Trace-Tag", Value: "configured"},
	}})
	conn, err := c.Dial(context.Background(), url, []handshake.Header{
		{Name: "Authorization", Value: "Bearer per-call"},
		{Name: "X-Trace-Tag", Value: "per-call"},
	})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	received := <-headers
	if got := received.Get("Origin"); got != "https://example.com" {
		t.Errorf("Origin = %q, want the configured value", got)
	}
	if got := received.Get("Authorization"); got != "Bearer per-call" {
		t.Errorf("Authorization = %q, want the per-call value", got)
	}
	tags := received.Values("X-Trace-Tag")
	if len(tags) != 2 || tags[0] != "configured" || tags[1] != "per-call" {
		t.Errorf("X-Trace-Tag = %v, want configured before per-call", tags)
	}
}

func TestDialRejectsNon101(t *testing.T) {
	server := wstest.NewScript(t, wstest.Script{
		Response: []byte("HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n"),
	})

	_, err := Dial(context.Background(), server.URL, nil)
	if !errors.Is(err, handshake.ErrBadStatus) {
		t.Errorf("expected ErrBadStatus, got %v", err)
	}
}

func TestDialRejectsAcceptMismatch(t *testing.T) {
	server := wstest.NewScript(t, wstest.Script{
		Response: []byte("HTTP/1.1 101 Switching Protocols\r\n" +
			"Upgrade: websocket\r\n" +
			"Connection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: AAAAAAAAAAAAAAAAAAAAAAAAAAA=\r\n" +
			"\r\n"),
	})

	_, err := Dial(context.Background(), server.URL, nil)
	if !errors.Is(err, handshake.ErrAcceptMismatch) {
		t.Errorf("expected ErrAcceptMismatch, got %v", err)
	}
}

func TestDialTimesOutOnSilentServer(t *testing.T) {
	// The server swallows the request and never answers.
	server := wstest.NewScript(t, wstest.Script{Hold: true})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, server.URL, nil)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestDialInvalidURL(t *testing.T) {
	_, err := Dial(context.Background(), "http://example.com/", nil)
	if !errors.Is(err, wsurl.ErrScheme) {
		t.Errorf("expected ErrScheme, got %v", err)
	}
}

func TestDialConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	url := fmt.Sprintf("ws://%s/", listener.Addr())
	listener.Close()

	if _, err := Dial(context.Background(), url, nil); err == nil {
		t.Error("expected an error dialing a closed port")
	}
}

// A server may start sending frames immediately after its 101 response,
// in the same segment. Those bytes must reach the frame reader.
func TestDialPreservesEarlyFrames(t *testing.T) {
	entropy := []byte("0123456789abcdef")
	nonce := base64.StdEncoding.EncodeToString(entropy)

	var response bytes.Buffer
	response.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	response.WriteString("Upgrade: websocket\r\n")
	response.WriteString("Connection: Upgrade\r\n")
	response.WriteString("Sec-WebSocket-Accept: " + handshake.AcceptKey(nonce) + "\r\n")
	response.WriteString("\r\n")
	if err := ws.WriteFrame(&response, ws.NewFrame(ws.OpText, true, []byte("early"))); err != nil {
		t.Fatalf("building early frame: %v", err)
	}
	server := wstest.NewScript(t, wstest.Script{Response: response.Bytes(), Hold: true})

	c := New(Config{Random: bytes.NewReader(entropy)})
	conn, err := c.Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if messageType != MessageText || string(payload) != "early" {
		t.Errorf("early message = %v %q, want TEXT 'early'", messageType, payload)
	}
}

func TestPingIsAnsweredByPong(t *testing.T) {
	server := wstest.NewEcho(t)
	capture := &captureLogger{}

	conn, err := New(Config{Logger: capture}).Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Ping([]byte("probe")); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	// The pong precedes the echo on the wire, so one read pumps both.
	if err := conn.WriteText("after ping"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var pingOut, pongIn bool
	for _, event := range capture.snapshot() {
		if event.Control == nil {
			continue
		}
		switch {
		case event.Control.Type == log.ControlPing && event.Direction == log.DirectionOut:
			pingOut = true
		case event.Control.Type == log.ControlPong && event.Direction == log.DirectionIn:
			pongIn = true
		}
	}
	if !pingOut {
		t.Error("expected an outgoing ping event")
	}
	if !pongIn {
		t.Error("expected an incoming pong event")
	}
}

func TestPingRejectsOversizedPayload(t *testing.T) {
	server := wstest.NewEcho(t)

	conn, err := Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Ping(make([]byte, 126)); !errors.Is(err, ErrControlPayload) {
		t.Errorf("expected ErrControlPayload, got %v", err)
	}
}

func TestCloseHandshake(t *testing.T) {
	server := wstest.NewEcho(t)

	conn, err := Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.SendClose(1000, "done"); err != nil {
		t.Fatalf("SendClose failed: %v", err)
	}

	_, _, err = conn.ReadMessage()
	var closeErr CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected CloseError, got %v", err)
	}
	if closeErr.Code != 1000 {
		t.Errorf("close code = %d, want 1000", closeErr.Code)
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if got := conn.State(); got != StateClosed {
		t.Errorf("State() = %v, want CLOSED", got)
	}

	if err := conn.WriteText("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed writing after close, got %v", err)
	}
	if _, _, err := conn.ReadMessage(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed reading after close, got %v", err)
	}
}

// A close body must start with a status code, so SendClose(0, reason)
// has to put an empty close frame on the wire and drop the reason.
func TestSendCloseWithoutCodeSendsEmptyFrame(t *testing.T) {
	codes := make(chan int, 1)
	upgrader := websocket.Upgrader{}
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer serverConn.Close()
		_, _, err = serverConn.ReadMessage()
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			codes <- closeErr.Code
		} else {
			codes <- -1
		}
	}))
	t.Cleanup(httpServer.Close)
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")

	conn, err := Dial(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.SendClose(0, "reason without a code"); err != nil {
		t.Fatalf("SendClose failed: %v", err)
	}

	select {
	case code := <-codes:
		if code != websocket.CloseNoStatusReceived {
			t.Errorf("server saw close code %d, want %d for an empty close body",
				code, websocket.CloseNoStatusReceived)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the server to observe the close")
	}
}

func TestWriteMessageRejectsUnknownType(t *testing.T) {
	server := wstest.NewEcho(t)

	conn, err := Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(MessageType(9), []byte("x")); !errors.Is(err, ErrMessageType) {
		t.Errorf("expected ErrMessageType, got %v", err)
	}
}

func TestRoundTripPayloadSizes(t *testing.T) {
	build := func(n int) []byte {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i % 251)
		}
		return payload
	}

	t.Run("small plain", func(t *testing.T) {
		server := wstest.NewEcho(t)
		conn, err := Dial(context.Background(), server.URL, nil)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()
		roundTrip(t, conn, build(512))
	})

	t.Run("large plain", func(t *testing.T) {
		// Past the gather threshold: exercises the vectored write path.
		server := wstest.NewEcho(t)
		conn, err := Dial(context.Background(), server.URL, nil)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()
		roundTrip(t, conn, build(64*1024))
	})

	t.Run("large secure", func(t *testing.T) {
		server, clientConfig := wstest.NewEchoTLS(t)
		conn, err := New(Config{Connector: transport.NewConnector(clientConfig)}).Dial(context.Background(), server.URL, nil)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()
		roundTrip(t, conn, build(16*1024))
	})
}

func roundTrip(t *testing.T, conn *Conn, payload []byte) {
	t.Helper()
	if err := conn.WriteBinary(payload); err != nil {
		t.Fatalf("WriteBinary(%d bytes) failed: %v", len(payload), err)
	}
	messageType, echoed, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if messageType != MessageBinary {
		t.Errorf("message type = %v, want BINARY", messageType)
	}
	if !bytes.Equal(echoed, payload) {
		t.Errorf("echo differs: got %d bytes, want %d bytes", len(echoed), len(payload))
	}
}

func TestConcurrentWriters(t *testing.T) {
	server := wstest.NewEcho(t)

	conn, err := Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	const writers = 4
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				message := fmt.Sprintf("writer %d message %d", w, i)
				if err := conn.WriteText(message); err != nil {
					t.Errorf("WriteText(%q) failed: %v", message, err)
					return
				}
			}
		}(w)
	}

	received := make(map[string]bool)
	for i := 0; i < writers*perWriter; i++ {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage #%d failed: %v", i, err)
		}
		received[string(payload)] = true
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		for i := 0; i < perWriter; i++ {
			message := fmt.Sprintf("writer %d message %d", w, i)
			if !received[message] {
				t.Errorf("message %q was never echoed", message)
			}
		}
	}
}

func TestDialTracesLifecycle(t *testing.T) {
	server := wstest.NewEcho(t)
	capture := &captureLogger{}

	conn, err := New(Config{Logger: capture}).Dial(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if err := conn.WriteText("traced"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	conn.Close()

	events := capture.snapshot()

	var states []string
	for _, event := range events {
		if event.ConnectionID != conn.ConnID() {
			t.Errorf("event with foreign connection ID %q", event.ConnectionID)
		}
		if event.StateChange != nil {
			states = append(states, event.StateChange.NewState)
		}
	}
	wantStates := []string{"CONNECTING", "HANDSHAKING", "OPEN", "CLOSED"}
	if len(states) != len(wantStates) {
		t.Fatalf("state transitions = %v, want %v", states, wantStates)
	}
	for i, want := range wantStates {
		if states[i] != want {
			t.Errorf("state[%d] = %q, want %q", i, states[i], want)
		}
	}

	var request, response *log.HandshakeEvent
	for _, event := range events {
		if event.Handshake == nil {
			continue
		}
		switch event.Handshake.Phase {
		case log.PhaseRequest:
			request = event.Handshake
		case log.PhaseResponse:
			response = event.Handshake
		}
	}
	if request == nil {
		t.Fatal("expected a handshake request event")
	}
	if request.Key == "" || request.Size == 0 {
		t.Errorf("request event = %+v, want key and size set", request)
	}
	if response == nil {
		t.Fatal("expected a handshake response event")
	}
	if response.Status != 101 || response.Duration == nil {
		t.Errorf("response event = %+v, want status 101 and a duration", response)
	}

	var frameOut, frameIn bool
	for _, event := range events {
		if event.Frame == nil {
			continue
		}
		if event.Direction == log.DirectionOut && string(event.Frame.Data) == "traced" {
			frameOut = true
		}
		if event.Direction == log.DirectionIn && string(event.Frame.Data) == "traced" {
			frameIn = true
		}
	}
	if !frameOut || !frameIn {
		t.Errorf("expected frame events both ways, got out=%v in=%v", frameOut, frameIn)
	}
}

// The traced request size must be the size of the request that went
// over the wire, computed before anything is sent.
func TestDialTracesRequestSize(t *testing.T) {
	entropy := []byte("0123456789abcdef")
	nonce := base64.StdEncoding.EncodeToString(entropy)
	server := wstest.NewScript(t, wstest.Script{
		Response: []byte("HTTP/1.1 101 Switching Protocols\r\n" +
			"Upgrade: websocket\r\n" +
			"Connection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: " + handshake.AcceptKey(nonce) + "\r\n\r\n"),
		Hold: true,
	})

	capture := &captureLogger{}
	c := New(Config{
		Logger: capture,
		Random: bytes.NewReader(entropy),
		Header: []handshake.Header{{Name: "Origin", Value: "https://example.com"}},
	})
	conn, err := c.Dial(context.Background(), server.URL, []handshake.Header{
		{Name: "X-Trace-Tag", Value: "sized"},
	})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	var size int
	for _, event := range capture.snapshot() {
		if event.Handshake != nil && event.Handshake.Phase == log.PhaseRequest {
			size = event.Handshake.Size
		}
	}
	if wire := len(server.Request()); size == 0 || size != wire {
		t.Errorf("traced request size = %d, want the %d bytes seen on the wire", size, wire)
	}
}

func TestDialTracesHandshakeFailure(t *testing.T) {
	server := wstest.NewScript(t, wstest.Script{
		Response: []byte("HTTP/1.1 500 Internal Server Error\r\n\r\n"),
	})
	capture := &captureLogger{}

	_, err := New(Config{Logger: capture}).Dial(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("expected the dial to fail")
	}

	var found bool
	for _, event := range capture.snapshot() {
		if event.Error != nil && event.Error.Layer == log.LayerHandshake {
			found = true
		}
	}
	if !found {
		t.Error("expected a handshake-layer error event")
	}
}
