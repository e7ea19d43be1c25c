// Package wstest provides in-process WebSocket servers for tests and the
// bench tool: an echo server (plain or TLS) that performs the server side
// of the opening handshake and echoes frames, a scriptable server that
// answers the upgrade request with canned bytes, and self-signed
// certificate generation for loopback TLS.
package wstest
