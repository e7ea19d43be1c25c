// Package client dials WebSocket connections: it establishes the
// transport for a ws:// or wss:// URL, performs the RFC 6455 opening
// handshake and exposes the upgraded connection as a message reader
// and writer.
//
// # Quick Start
//
//	conn, err := client.Dial(ctx, "wss://example.com/chat", nil)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.WriteText("hello"); err != nil {
//		return err
//	}
//	messageType, payload, err := conn.ReadMessage()
//
// # Configuration
//
// A Client carries a Config and can dial any number of connections
// with it:
//
//	c := client.New(client.Config{
//		BufferSize: 32 * 1024,
//		Header:     []handshake.Header{{Name: "Origin", Value: "https://example.com"}},
//		Logger:     log.NewFileLogger("conn.wslog"),
//	})
//	conn, err := c.Dial(ctx, "wss://example.com/chat", nil)
//
// Per-connection headers go in Dial's extra argument; they are sent
// after the configured Header set.
//
// The context passed to Dial bounds the whole connect sequence. Its
// deadline is installed on the socket, so it also cuts short a server
// that accepts the TCP connection and then goes quiet mid-handshake.
//
// # Concurrency
//
// One goroutine drives ReadMessage. Writes are safe from any
// goroutine, including concurrently with the reader: data frames,
// pings and the replies the read path issues for the server's control
// frames all serialize on one internal lock. Two goroutines must not
// call ReadMessage at the same time.
//
// # Closing
//
// A clean shutdown sends a close frame and keeps reading until the
// server's reply surfaces as CloseError:
//
//	conn.SendClose(1000, "done")
//	for {
//		if _, _, err := conn.ReadMessage(); err != nil {
//			break
//		}
//	}
//	conn.Close()
//
// Close alone is also valid: it drops the transport without the
// closing handshake, the way a process shutdown would.
package client
