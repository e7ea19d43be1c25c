package handshake

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	// MaxResponseSize caps the accumulated response head. Anything larger
	// without a terminating blank line fails with ErrResponseTooLarge.
	MaxResponseSize = 16 * 1024

	// readChunkSize is how much is requested from the transport per read
	// while hunting for the header terminator.
	readChunkSize = 1024

	// maxHeaderCount caps the number of header lines in the response head.
	maxHeaderCount = 32
)

// headerTerminator is the blank line ending the response head.
var headerTerminator = []byte("\r\n\r\n")

// ReadResponse reads and validates the server's upgrade response.
//
// The head is accumulated from r in chunks until the terminating blank
// line is seen, with MaxResponseSize enforced after every growth step. It
// must then parse as an HTTP/1.1 response and pass validation in a fixed
// order: status 101, a Connection header containing the token "upgrade",
// an Upgrade header equal to "websocket" (both case-insensitive), and a
// Sec-WebSocket-Accept byte-identical to expectedAccept.
//
// Any bytes received past the head (a server may pipeline its first
// frame behind the 101) are returned as excess; the caller must feed
// them to the frame engine before reading from the transport again.
// Excess is returned even when validation fails, so a caller that keeps
// the transport open after a rejected upgrade does not lose bytes.
func ReadResponse(r io.Reader, expectedAccept string) (excess []byte, err error) {
	buf := make([]byte, 0, 2048)
	var chunk [readChunkSize]byte
	scan := 0
	headEnd := -1

	for headEnd < 0 {
		if i := bytes.Index(buf[scan:], headerTerminator); i >= 0 {
			headEnd = scan + i + len(headerTerminator)
			break
		}
		// The terminator can straddle a read boundary; back up three bytes
		// so a split "\r\n\r\n" is still found without a full rescan.
		scan = max(len(buf)-3, 0)

		n, rerr := r.Read(chunk[:])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > MaxResponseSize {
				return nil, ErrResponseTooLarge
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				return nil, fmt.Errorf("reading handshake response: %w", rerr)
			}
			// A final chunk may arrive together with EOF and still
			// complete the head.
			if i := bytes.Index(buf[scan:], headerTerminator); i >= 0 {
				headEnd = scan + i + len(headerTerminator)
				break
			}
			return nil, ErrUnexpectedEOF
		}
	}

	if err := validateResponse(buf[:headEnd], expectedAccept); err != nil {
		return buf[headEnd:], err
	}
	return buf[headEnd:], nil
}

// validateResponse checks the complete response head against the RFC 6455
// client requirements. head includes the terminating blank line.
func validateResponse(head []byte, expectedAccept string) error {
	// Header lines = CRLF count minus the status line and the terminator's
	// closing CRLF.
	if n := bytes.Count(head, []byte(crlf)) - 2; n > maxHeaderCount {
		return fmt.Errorf("%w: %d header lines", ErrBadHeaders, n)
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(head)), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeaders, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return fmt.Errorf("%w: got %d", ErrBadStatus, resp.StatusCode)
	}

	connection := resp.Header.Values("Connection")
	if len(connection) == 0 {
		return fmt.Errorf("%w: Connection header missing", ErrBadHeaders)
	}
	if !headerHasToken(connection, "upgrade") {
		return fmt.Errorf("%w: Connection %q lacks upgrade token", ErrBadHeaders, strings.Join(connection, ", "))
	}

	upgrade := resp.Header.Get("Upgrade")
	if upgrade == "" {
		return fmt.Errorf("%w: Upgrade header missing", ErrBadHeaders)
	}
	if !strings.EqualFold(upgrade, "websocket") {
		return fmt.Errorf("%w: Upgrade is %q", ErrBadHeaders, upgrade)
	}

	accepts := resp.Header.Values("Sec-WebSocket-Accept")
	if len(accepts) == 0 {
		return fmt.Errorf("%w: Sec-WebSocket-Accept header missing", ErrBadHeaders)
	}
	if !utf8.ValidString(accepts[0]) {
		return ErrInvalidUTF8
	}
	if accepts[0] != expectedAccept {
		return ErrAcceptMismatch
	}
	return nil
}

// headerHasToken reports whether any of the comma-separated header values
// contains token, compared case-insensitively with surrounding whitespace
// trimmed. "keep-alive, Upgrade" therefore matches "upgrade".
func headerHasToken(values []string, token string) bool {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
