package handshake

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
)

// AcceptGUID is the fixed GUID from RFC 6455 section 1.3, appended to the
// client nonce before hashing to derive Sec-WebSocket-Accept.
const AcceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// nonceSize is the number of random bytes behind Sec-WebSocket-Key.
const nonceSize = 16

// Key is a freshly generated Sec-WebSocket-Key nonce together with the
// Sec-WebSocket-Accept value the server must echo back.
type Key struct {
	// Nonce is the base64-encoded 16-byte random value sent as
	// Sec-WebSocket-Key.
	Nonce string

	// Accept is the expected Sec-WebSocket-Accept response value,
	// precomputed so response validation is a plain byte comparison.
	Accept string
}

// NewKey generates a key from crypto/rand.
func NewKey() (Key, error) {
	return NewKeyFrom(rand.Reader)
}

// NewKeyFrom generates a key using the given entropy source. Tests pass a
// fixed source to make the handshake reproducible; production callers
// should stick with NewKey.
func NewKeyFrom(r io.Reader) (Key, error) {
	var buf [nonceSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Key{}, fmt.Errorf("reading key entropy: %w", err)
	}
	nonce := base64.StdEncoding.EncodeToString(buf[:])
	return Key{Nonce: nonce, Accept: AcceptKey(nonce)}, nil
}

// AcceptKey derives the Sec-WebSocket-Accept value for a nonce:
// base64(SHA-1(nonce + AcceptGUID)). SHA-1 is what RFC 6455 prescribes
// here; it authenticates nothing and only proves the server speaks
// WebSocket.
func AcceptKey(nonce string) string {
	h := sha1.New()
	h.Write([]byte(nonce))
	h.Write([]byte(AcceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
