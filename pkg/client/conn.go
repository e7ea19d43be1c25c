package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/wsdial/wsdial/pkg/log"
	"github.com/wsdial/wsdial/pkg/transport"
	"github.com/wsdial/wsdial/pkg/wsurl"
)

// Payloads at least this large skip the write buffer on plain TCP and
// go out as a gathered [header, masked payload] writev. Below it the
// buffer copy is cheaper than the extra syscall setup.
const gatherThreshold = 1024

// Conn is an open WebSocket connection. One goroutine may call
// ReadMessage while others write; the write path is serialized
// internally, including the pong and close replies issued from the
// read path.
type Conn struct {
	stream    *transport.Stream
	target    wsurl.Target
	targetStr string
	connID    string
	remote    string
	logger    log.Logger

	// reader is driven only by ReadMessage.
	reader *wsutil.Reader

	writeMu   sync.Mutex
	closeSent bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	mu    sync.Mutex
	state State
}

func newConn(stream *transport.Stream, target wsurl.Target, connID string, excess []byte, logger log.Logger) *Conn {
	c := &Conn{
		stream:    stream,
		target:    target,
		targetStr: target.String(),
		connID:    connID,
		remote:    stream.RemoteAddr().String(),
		logger:    logger,
		state:     StateOpen,
	}

	// Bytes the server sent on the heels of its 101 response were read
	// past the head during validation and must be consumed first.
	var source io.Reader = stream
	if len(excess) > 0 {
		source = io.MultiReader(bytes.NewReader(excess), stream)
	}
	c.reader = &wsutil.Reader{
		Source:         source,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: c.onControl,
	}
	return c
}

// ReadMessage blocks until the next data message arrives and returns
// its type and payload. Fragmented messages are reassembled. Control
// frames encountered along the way are answered transparently; when
// the server sends a close frame, the close handshake is completed and
// a CloseError is returned.
func (c *Conn) ReadMessage() (MessageType, []byte, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return 0, nil, c.readError(err)
		}
		if hdr.OpCode.IsControl() {
			if err := c.onControl(hdr, c.reader); err != nil {
				return 0, nil, c.readError(err)
			}
			continue
		}
		payload, err := io.ReadAll(c.reader)
		if err != nil {
			return 0, nil, c.readError(err)
		}
		c.logFrame(log.DirectionIn, hdr.OpCode, payload)
		return messageTypeOf(hdr.OpCode), payload, nil
	}
}

// WriteMessage sends a single data message with the given type.
func (c *Conn) WriteMessage(messageType MessageType, payload []byte) error {
	op, ok := messageType.opCode()
	if !ok {
		return fmt.Errorf("%w: got %d", ErrMessageType, messageType)
	}
	if err := c.writeFrame(op, payload); err != nil {
		return err
	}
	c.logFrame(log.DirectionOut, op, payload)
	return nil
}

// WriteText sends a text message.
func (c *Conn) WriteText(text string) error {
	return c.WriteMessage(MessageText, []byte(text))
}

// WriteBinary sends a binary message.
func (c *Conn) WriteBinary(payload []byte) error {
	return c.WriteMessage(MessageBinary, payload)
}

// Ping sends a ping frame. The pong is consumed and traced by a later
// ReadMessage call, not returned to the caller.
func (c *Conn) Ping(payload []byte) error {
	if len(payload) > ws.MaxControlFramePayloadSize {
		return fmt.Errorf("%w: got %d", ErrControlPayload, len(payload))
	}
	// Masking ciphers in place, so the caller's bytes are copied first.
	if err := c.writeControl(ws.OpPing, append([]byte(nil), payload...)); err != nil {
		return err
	}
	c.logControl(log.DirectionOut, log.ControlPing, 0, "")
	return nil
}

// SendClose sends a close frame with the given status code and reason.
// A code of 0 sends an empty close frame; a reason without a code is
// ignored, since a close body must start with a status code. The
// transport stays open so the server's close reply can still be read;
// callers should keep reading until CloseError and then Close.
func (c *Conn) SendClose(code uint16, reason string) error {
	if len(reason) > ws.MaxControlFramePayloadSize-2 {
		return fmt.Errorf("%w: got %d", ErrControlPayload, len(reason)+2)
	}
	sent, err := c.writeClose(code, reason)
	if err != nil {
		return err
	}
	if sent {
		c.logControl(log.DirectionOut, log.ControlClose, code, reason)
	}
	return nil
}

// Close releases the transport. Unflushed bytes are dropped and any
// blocked ReadMessage returns ErrClosed. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.mu.Lock()
		oldState := c.state
		c.state = StateClosed
		c.mu.Unlock()
		c.closeErr = c.stream.Close()
		c.logState(oldState, StateClosed)
	})
	return c.closeErr
}

// State returns the connection's lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target returns the parsed URL the connection was dialed for.
func (c *Conn) Target() wsurl.Target {
	return c.target
}

// ConnID returns the connection's trace identifier.
func (c *Conn) ConnID() string {
	return c.connID
}

// Stream returns the underlying buffered stream, for deadline control.
func (c *Conn) Stream() *transport.Stream {
	return c.stream
}

// NetConn returns the underlying network connection.
func (c *Conn) NetConn() net.Conn {
	return c.stream.NetConn()
}

// onControl answers a control frame whose payload is readable from rd.
// It is invoked from the ReadMessage loop and, for control frames that
// interleave a fragmented message, by the frame reader itself.
func (c *Conn) onControl(hdr ws.Header, rd io.Reader) error {
	payload, err := io.ReadAll(rd)
	if err != nil {
		return err
	}
	switch hdr.OpCode {
	case ws.OpPing:
		c.logControl(log.DirectionIn, log.ControlPing, 0, "")
		if err := c.writeControl(ws.OpPong, payload); err != nil {
			return err
		}
		c.logControl(log.DirectionOut, log.ControlPong, 0, "")
	case ws.OpPong:
		c.logControl(log.DirectionIn, log.ControlPong, 0, "")
	case ws.OpClose:
		code, reason := ws.ParseCloseFrameData(payload)
		c.logControl(log.DirectionIn, log.ControlClose, uint16(code), reason)
		// Echo the status code back unless we already sent our own
		// close. The reply is best effort: the peer's close stands
		// regardless.
		if sent, err := c.writeClose(uint16(code), ""); err == nil && sent {
			c.logControl(log.DirectionOut, log.ControlClose, uint16(code), "")
		}
		return CloseError{Code: uint16(code), Reason: reason}
	}
	return nil
}

func (c *Conn) writeFrame(op ws.OpCode, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if c.stream.GatherWrites() && len(payload) >= gatherThreshold {
		return c.writeFrameGathered(op, payload)
	}
	frame := ws.MaskFrame(ws.NewFrame(op, true, payload))
	if err := ws.WriteFrame(c.stream, frame); err != nil {
		return err
	}
	return c.stream.Flush()
}

// writeFrameGathered hands the frame header and the masked payload to
// the kernel as a single vectored write.
func (c *Conn) writeFrameGathered(op ws.OpCode, payload []byte) error {
	mask := ws.NewMask()
	header := ws.Header{
		Fin:    true,
		OpCode: op,
		Masked: true,
		Mask:   mask,
		Length: int64(len(payload)),
	}
	masked := make([]byte, len(payload))
	copy(masked, payload)
	ws.Cipher(masked, mask, 0)

	head := bytes.NewBuffer(make([]byte, 0, ws.MaxHeaderSize))
	if err := ws.WriteHeader(head, header); err != nil {
		return err
	}
	_, err := c.stream.WriteBuffers(net.Buffers{head.Bytes(), masked})
	return err
}

// writeControl sends a masked control frame and flushes it so it never
// sits in the write buffer. The payload must be owned by the caller:
// masking ciphers it in place.
func (c *Conn) writeControl(op ws.OpCode, payload []byte) error {
	frame := ws.MaskFrameInPlace(ws.NewFrame(op, true, payload))
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ws.WriteFrame(c.stream, frame); err != nil {
		return err
	}
	return c.stream.Flush()
}

// writeClose sends at most one close frame per connection. It reports
// whether this call was the one that sent it.
func (c *Conn) writeClose(code uint16, reason string) (bool, error) {
	var payload []byte
	if code != 0 {
		payload = ws.NewCloseFrameBody(ws.StatusCode(code), reason)
	}
	frame := ws.MaskFrameInPlace(ws.NewFrame(ws.OpClose, true, payload))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closeSent {
		return false, nil
	}
	if c.closed.Load() {
		return false, ErrClosed
	}
	c.closeSent = true
	if err := ws.WriteFrame(c.stream, frame); err != nil {
		return true, err
	}
	return true, c.stream.Flush()
}

// readError classifies errors surfacing from the read path. A close
// handshake and a locally closed connection are expected endings and
// are not traced as errors.
func (c *Conn) readError(err error) error {
	var closeErr CloseError
	if errors.As(err, &closeErr) {
		return err
	}
	if c.closed.Load() && errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	c.logError(log.LayerFrame, err, "read")
	return err
}

func (c *Conn) newEvent(dir log.Direction, layer log.Layer, category log.Category) log.Event {
	return newEvent(c.connID, dir, layer, category, c.targetStr, c.remote)
}

func (c *Conn) logFrame(dir log.Direction, op ws.OpCode, payload []byte) {
	event := c.newEvent(dir, log.LayerFrame, log.CategoryFrame)
	event.Frame = log.NewFrameEvent(uint8(op), true, payload)
	c.logger.Log(event)
}

func (c *Conn) logControl(dir log.Direction, controlType log.ControlType, code uint16, reason string) {
	event := c.newEvent(dir, log.LayerFrame, log.CategoryControl)
	control := &log.ControlEvent{Type: controlType, Reason: reason}
	if controlType == log.ControlClose && code != 0 {
		control.CloseCode = &code
	}
	event.Control = control
	c.logger.Log(event)
}

func (c *Conn) logState(oldState, newState State) {
	event := c.newEvent(log.DirectionOut, log.LayerTransport, log.CategoryState)
	event.StateChange = &log.StateChangeEvent{
		OldState: oldState.String(),
		NewState: newState.String(),
	}
	c.logger.Log(event)
}

func (c *Conn) logError(layer log.Layer, err error, context string) {
	event := c.newEvent(log.DirectionIn, layer, log.CategoryError)
	event.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: context,
	}
	c.logger.Log(event)
}
