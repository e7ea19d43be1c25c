// Command wsdial-echo is a minimal WebSocket echo client.
//
// It dials a WebSocket URL, sends a text message a number of times,
// prints what comes back and performs a clean close handshake.
//
// Usage:
//
//	wsdial-echo [flags]
//
// Flags:
//
//	-url string       WebSocket URL to dial (default "ws://127.0.0.1:9001/echo")
//	-message string   Message text to send (default "hello")
//	-n int            Number of round trips (default 1)
//	-buffer int       Stream buffer size in bytes (0 = default 16 KiB)
//	-insecure         Skip TLS certificate verification
//	-timeout duration Timeout for the whole session (default 30s)
//	-v                Verbose: print trace events to stderr
//
// Examples:
//
//	# Single round trip against a local server
//	wsdial-echo -url ws://localhost:9001/echo -message ping
//
//	# Ten round trips over TLS with a larger buffer
//	wsdial-echo -url wss://echo.example.com/ws -n 10 -buffer 65536
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wsdial/wsdial/pkg/client"
	"github.com/wsdial/wsdial/pkg/log"
	"github.com/wsdial/wsdial/pkg/transport"
)

func main() {
	url := flag.String("url", "ws://127.0.0.1:9001/echo", "WebSocket URL to dial")
	message := flag.String("message", "hello", "Message text to send")
	n := flag.Int("n", 1, "Number of round trips")
	buffer := flag.Int("buffer", 0, "Stream buffer size in bytes (0 = default)")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")
	timeout := flag.Duration("timeout", 30*time.Second, "Timeout for the whole session")
	verbose := flag.Bool("v", false, "Verbose: print trace events to stderr")
	flag.Parse()

	if err := run(*url, *message, *n, *buffer, *insecure, *timeout, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(url, message string, n, buffer int, insecure bool, timeout time.Duration, verbose bool) error {
	config := client.Config{BufferSize: buffer}
	if insecure {
		config.Connector = transport.NewConnector(&tls.Config{InsecureSkipVerify: true})
	}
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		config.Logger = log.NewSlogAdapter(slog.New(handler))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := client.New(config).Dial(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connected to %s\n", conn.Target())

	for i := 0; i < n; i++ {
		if err := conn.WriteText(message); err != nil {
			return fmt.Errorf("sending message %d: %w", i+1, err)
		}
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading echo %d: %w", i+1, err)
		}
		fmt.Printf("< [%s] %s\n", messageType, payload)
	}

	// Clean shutdown: send our close, then read until the server's
	// close reply surfaces.
	if err := conn.SendClose(1000, ""); err != nil {
		return fmt.Errorf("sending close: %w", err)
	}
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			var closeErr client.CloseError
			if errors.As(err, &closeErr) {
				break
			}
			return fmt.Errorf("awaiting close reply: %w", err)
		}
	}
	return nil
}
