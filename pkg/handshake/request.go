package handshake

import (
	"fmt"
	"io"
	"math"
)

// Writer is the sink for the upgrade request: buffered writes plus an
// explicit flush, as provided by transport.Stream.
type Writer interface {
	io.Writer
	Flush() error
}

// Header is a single extra request header. Extra headers are written in
// slice order, verbatim: no escaping, folding, or validation is applied.
type Header struct {
	Name  string
	Value string
}

// Fixed request fragments. Keeping them as contiguous constants means the
// assembled request is a handful of appends with no formatting step.
const (
	requestPrefix   = "GET "
	requestSuffix   = " HTTP/1.1\r\nHost: "
	upgradeHeaders  = "\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Version: 13\r\nSec-WebSocket-Key: "
	headerSeparator = ": "
	crlf            = "\r\n"
)

// RequestSize returns the exact serialized size of the upgrade request
// for the given parts. Every addition is overflow-checked; a header set
// whose total would overflow returns ErrRequestTooLarge.
func RequestSize(host, pathAndQuery, nonce string, extra []Header) (int, error) {
	size, ok := addChecked(0,
		len(requestPrefix), len(pathAndQuery), len(requestSuffix), len(host),
		len(upgradeHeaders), len(nonce), len(crlf), len(crlf))
	if !ok {
		return 0, ErrRequestTooLarge
	}
	for _, h := range extra {
		size, ok = addChecked(size, len(h.Name), len(headerSeparator), len(h.Value), len(crlf))
		if !ok {
			return 0, ErrRequestTooLarge
		}
	}
	return size, nil
}

// WriteRequest assembles and sends the upgrade request. The size is
// computed (and overflow-checked) first, so nothing is written for a
// request that cannot be fully built; the request then goes out as a
// single Write followed by a single Flush, and the peer never observes a
// partial request on success.
func WriteRequest(w Writer, host, pathAndQuery, nonce string, extra []Header) error {
	size, err := RequestSize(host, pathAndQuery, nonce, extra)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, size)
	buf = append(buf, requestPrefix...)
	buf = append(buf, pathAndQuery...)
	buf = append(buf, requestSuffix...)
	buf = append(buf, host...)
	buf = append(buf, upgradeHeaders...)
	buf = append(buf, nonce...)
	buf = append(buf, crlf...)
	for _, h := range extra {
		buf = append(buf, h.Name...)
		buf = append(buf, headerSeparator...)
		buf = append(buf, h.Value...)
		buf = append(buf, crlf...)
	}
	buf = append(buf, crlf...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing handshake request: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing handshake request: %w", err)
	}
	return nil
}

// addChecked sums base and parts, reporting false on int overflow.
func addChecked(base int, parts ...int) (int, bool) {
	sum := base
	for _, p := range parts {
		if p > math.MaxInt-sum {
			return 0, false
		}
		sum += p
	}
	return sum, true
}
