package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wsdial/wsdial/pkg/log"
)

func TestFormatHandshakeRequestEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerHandshake,
		Category:     log.CategoryHandshake,
		Handshake: &log.HandshakeEvent{
			Phase: log.PhaseRequest,
			Key:   "dGhlIHNhbXBsZSBub25jZQ==",
			Size:  171,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "2026-01-28T10:15:32.123456Z") {
		t.Errorf("expected formatted timestamp, got: %s", output)
	}
	if !strings.Contains(output, "[conn:abc12345]") {
		t.Errorf("expected shortened connection ID, got: %s", output)
	}
	if !strings.Contains(output, "OUT") {
		t.Errorf("expected OUT direction, got: %s", output)
	}
	if !strings.Contains(output, "HANDSHAKE REQUEST") {
		t.Errorf("expected handshake request header, got: %s", output)
	}
	if !strings.Contains(output, "Key: dGhlIHNhbXBsZSBub25jZQ==") {
		t.Errorf("expected nonce, got: %s", output)
	}
	if !strings.Contains(output, "Size: 171 bytes") {
		t.Errorf("expected request size, got: %s", output)
	}
}

func TestFormatHandshakeResponseEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 125789000, time.UTC)
	duration := 2333 * time.Microsecond
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionIn,
		Layer:        log.LayerHandshake,
		Category:     log.CategoryHandshake,
		Handshake: &log.HandshakeEvent{
			Phase:    log.PhaseResponse,
			Accept:   "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=",
			Status:   101,
			Duration: &duration,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "RESPONSE") {
		t.Errorf("expected RESPONSE label, got: %s", output)
	}
	if !strings.Contains(output, "Status: 101") {
		t.Errorf("expected status, got: %s", output)
	}
	if !strings.Contains(output, "Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=") {
		t.Errorf("expected accept value, got: %s", output)
	}
	if !strings.Contains(output, "Duration: 2.333ms") {
		t.Errorf("expected duration, got: %s", output)
	}
}

func TestFormatTextFrameEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 33, 0, time.UTC),
		ConnectionID: "abc12345",
		Direction:    log.DirectionOut,
		Layer:        log.LayerFrame,
		Category:     log.CategoryFrame,
		Frame:        &log.FrameEvent{OpCode: 1, Fin: true, Size: 5, Data: []byte("hello")},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Frame") {
		t.Errorf("expected Frame label, got: %s", output)
	}
	if !strings.Contains(output, "Size: 5 bytes") {
		t.Errorf("expected frame size, got: %s", output)
	}
	if !strings.Contains(output, `Text: "hello"`) {
		t.Errorf("expected text payload verbatim, got: %s", output)
	}
}

func TestFormatBinaryFrameEventHexDump(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 33, 0, time.UTC),
		ConnectionID: "abc12345",
		Direction:    log.DirectionIn,
		Layer:        log.LayerFrame,
		Category:     log.CategoryFrame,
		Frame:        &log.FrameEvent{OpCode: 2, Fin: true, Size: 4, Data: []byte{0xde, 0xad, 0xbe, 0xef}, Truncated: true},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Data: deadbeef") {
		t.Errorf("expected hex payload, got: %s", output)
	}
	if !strings.Contains(output, "(truncated)") {
		t.Errorf("expected truncation marker, got: %s", output)
	}
}

func TestFormatControlEventUsesCtrlHeader(t *testing.T) {
	code := uint16(1000)
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 34, 0, time.UTC),
		ConnectionID: "abc12345",
		Direction:    log.DirectionIn,
		Layer:        log.LayerFrame,
		Category:     log.CategoryControl,
		Control:      &log.ControlEvent{Type: log.ControlClose, CloseCode: &code, Reason: "done"},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "CTRL CLOSE") {
		t.Errorf("expected CTRL CLOSE header, got: %s", output)
	}
	if !strings.Contains(output, "Code: 1000") {
		t.Errorf("expected close code, got: %s", output)
	}
	if !strings.Contains(output, "Reason: done") {
		t.Errorf("expected close reason, got: %s", output)
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC),
		ConnectionID: "abc12345",
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		StateChange:  &log.StateChangeEvent{OldState: "HANDSHAKING", NewState: "OPEN"},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "HANDSHAKING -> OPEN") {
		t.Errorf("expected state transition, got: %s", output)
	}
}

func TestFormatErrorEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC),
		ConnectionID: "abc12345",
		Direction:    log.DirectionIn,
		Layer:        log.LayerHandshake,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerHandshake,
			Message: "handshake response status is not 101",
			Context: "upgrade response",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Error") {
		t.Errorf("expected Error label, got: %s", output)
	}
	if !strings.Contains(output, "Message: handshake response status is not 101") {
		t.Errorf("expected error message, got: %s", output)
	}
	if !strings.Contains(output, "Context: upgrade response") {
		t.Errorf("expected error context, got: %s", output)
	}
}

func TestRunViewAppliesFilter(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-a", Layer: log.LayerHandshake, Category: log.CategoryHandshake,
			Handshake: &log.HandshakeEvent{Phase: log.PhaseRequest}},
		{Timestamp: ts, ConnectionID: "conn-a", Layer: log.LayerFrame, Category: log.CategoryFrame,
			Frame: &log.FrameEvent{OpCode: 1, Size: 3}},
	}
	path := createTestTraceFile(t, events)

	layer := log.LayerFrame
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "REQUEST") {
		t.Errorf("handshake event should have been filtered out, got: %s", output)
	}
	if !strings.Contains(output, "Frame") {
		t.Errorf("expected frame event in output, got: %s", output)
	}
}

func TestParseFlagHelpers(t *testing.T) {
	if _, err := ParseLayerFlag("bogus"); err == nil {
		t.Error("expected error for bogus layer")
	}
	if l, err := ParseLayerFlag("Handshake"); err != nil || l != log.LayerHandshake {
		t.Errorf("ParseLayerFlag(Handshake) = %v, %v", l, err)
	}
	if d, err := ParseDirectionFlag("IN"); err != nil || d != log.DirectionIn {
		t.Errorf("ParseDirectionFlag(IN) = %v, %v", d, err)
	}
	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("expected error for bogus direction")
	}
	if c, err := ParseCategoryFlag("control"); err != nil || c != log.CategoryControl {
		t.Errorf("ParseCategoryFlag(control) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("bogus"); err == nil {
		t.Error("expected error for bogus category")
	}
}
