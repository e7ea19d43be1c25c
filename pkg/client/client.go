package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/wsdial/wsdial/pkg/handshake"
	"github.com/wsdial/wsdial/pkg/log"
	"github.com/wsdial/wsdial/pkg/transport"
	"github.com/wsdial/wsdial/pkg/wsurl"
)

// Config controls how connections are established. The zero value dials
// with defaults: 16 KiB stream buffers, the shared TLS connector, no
// extra headers and no tracing.
type Config struct {
	// BufferSize is the stream read and write buffer size in bytes.
	// Zero means transport.DefaultBufferSize.
	BufferSize int

	// Connector supplies TLS client configuration for wss targets.
	// Nil means transport.DefaultConnector().
	Connector *transport.Connector

	// NetDialer overrides the TCP dialer, for timeouts or source
	// address binding. Nil means a zero net.Dialer.
	NetDialer *net.Dialer

	// Header lists extra header fields appended to the upgrade request,
	// such as Origin or authorization.
	Header []handshake.Header

	// Logger receives trace events for every connection dialed through
	// this config. Nil disables tracing.
	Logger log.Logger

	// Random overrides the entropy source for Sec-WebSocket-Key nonces.
	// Nil means crypto/rand.
	Random io.Reader
}

// Client dials WebSocket connections with a fixed configuration. The
// zero value is usable and equivalent to New(Config{}).
type Client struct {
	config Config
}

// New returns a client that dials with the given configuration.
func New(config Config) *Client {
	return &Client{config: config}
}

// Dial connects to a WebSocket URL with default configuration. extra
// headers, if any, are appended to the upgrade request.
func Dial(ctx context.Context, rawURL string, extra []handshake.Header) (*Conn, error) {
	return New(Config{}).Dial(ctx, rawURL, extra)
}

// DialWithBufferSize connects with a specific stream buffer size.
func DialWithBufferSize(ctx context.Context, rawURL string, extra []handshake.Header, bufferSize int) (*Conn, error) {
	return New(Config{BufferSize: bufferSize}).Dial(ctx, rawURL, extra)
}

// Dial establishes the transport for the URL, performs the opening
// handshake and returns the open connection. extra headers are sent on
// the upgrade request after the configured Header set; both reach the
// wire in order. The context bounds the whole sequence: its deadline is
// installed on the socket before the handshake, so a stalled server
// cannot hang the upgrade. The deadline is still armed on the returned
// connection; callers that set one should clear it before long-lived
// reads.
func (c *Client) Dial(ctx context.Context, rawURL string, extra []handshake.Header) (*Conn, error) {
	target, err := wsurl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	connID := uuid.New().String()
	targetStr := target.String()
	logger := c.config.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	logger.Log(stateEvent(connID, targetStr, "", log.LayerTransport, "", StateConnecting, ""))

	dialer := transport.Dialer{
		BufferSize: c.config.BufferSize,
		Connector:  c.config.Connector,
		NetDialer:  c.config.NetDialer,
	}
	stream, err := dialer.DialTarget(ctx, target)
	if err != nil {
		logger.Log(errorEvent(connID, targetStr, "", log.DirectionOut, log.LayerTransport, err, "dial"))
		return nil, err
	}
	remote := stream.RemoteAddr().String()

	logger.Log(stateEvent(connID, targetStr, remote, log.LayerHandshake, StateConnecting.String(), StateHandshaking, ""))

	key, err := c.newKey()
	if err != nil {
		stream.Close()
		logger.Log(errorEvent(connID, targetStr, remote, log.DirectionOut, log.LayerHandshake, err, "key generation"))
		return nil, err
	}

	headers := c.config.Header
	if len(extra) > 0 {
		headers = make([]handshake.Header, 0, len(c.config.Header)+len(extra))
		headers = append(headers, c.config.Header...)
		headers = append(headers, extra...)
	}

	requestSize, err := handshake.RequestSize(target.HostHeader(), target.PathAndQuery, key.Nonce, headers)
	if err != nil {
		stream.Close()
		logger.Log(errorEvent(connID, targetStr, remote, log.DirectionOut, log.LayerHandshake, err, "upgrade request"))
		return nil, fmt.Errorf("handshake with %s: %w", target.Addr(), err)
	}
	start := time.Now()
	if err := handshake.WriteRequest(stream, target.HostHeader(), target.PathAndQuery, key.Nonce, headers); err != nil {
		stream.Close()
		logger.Log(errorEvent(connID, targetStr, remote, log.DirectionOut, log.LayerHandshake, err, "upgrade request"))
		return nil, fmt.Errorf("handshake with %s: %w", target.Addr(), err)
	}
	event := newEvent(connID, log.DirectionOut, log.LayerHandshake, log.CategoryHandshake, targetStr, remote)
	event.Handshake = &log.HandshakeEvent{Phase: log.PhaseRequest, Key: key.Nonce, Size: requestSize}
	logger.Log(event)

	excess, err := handshake.ReadResponse(stream, key.Accept)
	if err != nil {
		stream.Close()
		logger.Log(errorEvent(connID, targetStr, remote, log.DirectionIn, log.LayerHandshake, err, "upgrade response"))
		return nil, fmt.Errorf("handshake with %s: %w", target.Addr(), err)
	}
	duration := time.Since(start)

	event = newEvent(connID, log.DirectionIn, log.LayerHandshake, log.CategoryHandshake, targetStr, remote)
	event.Handshake = &log.HandshakeEvent{Phase: log.PhaseResponse, Accept: key.Accept, Status: 101, Duration: &duration}
	logger.Log(event)

	conn := newConn(stream, target, connID, excess, logger)
	logger.Log(stateEvent(connID, targetStr, remote, log.LayerFrame, StateHandshaking.String(), StateOpen, ""))
	return conn, nil
}

func (c *Client) newKey() (handshake.Key, error) {
	if c.config.Random != nil {
		return handshake.NewKeyFrom(c.config.Random)
	}
	return handshake.NewKey()
}

func newEvent(connID string, dir log.Direction, layer log.Layer, category log.Category, target, remote string) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        layer,
		Category:     category,
		RemoteAddr:   remote,
		Target:       target,
	}
}

func stateEvent(connID, target, remote string, layer log.Layer, oldState string, newState State, reason string) log.Event {
	event := newEvent(connID, log.DirectionOut, layer, log.CategoryState, target, remote)
	event.StateChange = &log.StateChangeEvent{
		OldState: oldState,
		NewState: newState.String(),
		Reason:   reason,
	}
	return event
}

func errorEvent(connID, target, remote string, dir log.Direction, layer log.Layer, err error, context string) log.Event {
	event := newEvent(connID, dir, layer, log.CategoryError, target, remote)
	event.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: context,
	}
	return event
}
