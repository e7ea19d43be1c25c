// Command wsdial-repl is an interactive WebSocket client.
//
// Lines typed at the prompt are sent as text frames; incoming messages
// are printed as they arrive. Slash commands control the connection:
//
//	/ping [payload]     send a ping frame
//	/close [code]       send a close frame and wait for the reply
//	/quit               drop the connection and exit
//	/help               show the command list
//
// The endpoint comes from -url, or from a named profile in the wsdial
// YAML configuration file (wsdial.yaml in the working directory, or
// config.yaml under the user config dir):
//
//	default_profile: local
//	profiles:
//	  local:
//	    url: ws://127.0.0.1:9001/echo
//	  staging:
//	    url: wss://staging.example.com/ws
//	    buffer_size: 32768
//	    headers:
//	      - name: Origin
//	        value: https://example.com
//
// With -trace the full protocol exchange is captured to a .wslog file
// for later inspection with wsdial-trace.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/wsdial/wsdial/internal/cliconfig"
	"github.com/wsdial/wsdial/pkg/client"
	"github.com/wsdial/wsdial/pkg/handshake"
	"github.com/wsdial/wsdial/pkg/log"
	"github.com/wsdial/wsdial/pkg/transport"
)

func main() {
	url := flag.String("url", "", "WebSocket URL to dial (overrides -profile)")
	profile := flag.String("profile", "", "Profile name from the wsdial config file")
	configPath := flag.String("config", "", "Config file path (default: auto-detect)")
	trace := flag.String("trace", "", "Capture the protocol exchange to this .wslog file")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")
	flag.Parse()

	if err := run(*url, *profile, *configPath, *trace, *insecure); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(url, profileName, configPath, tracePath string, insecure bool) error {
	config, err := buildConfig(&url, profileName, configPath, insecure)
	if err != nil {
		return err
	}
	if url == "" {
		return errors.New("no URL: pass -url or -profile (with a wsdial config file)")
	}

	if tracePath != "" {
		logger, err := log.NewFileLogger(tracePath)
		if err != nil {
			return fmt.Errorf("opening trace file: %w", err)
		}
		defer logger.Close()
		config.Logger = logger
	}

	conn, err := client.New(config).Dial(context.Background(), url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ws> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "Connected to %s (type /help for commands)\n", conn.Target())

	// Incoming messages print from their own goroutine so a quiet
	// prompt does not block reads (and pings keep getting answered).
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				var closeErr client.CloseError
				if errors.As(err, &closeErr) {
					fmt.Fprintf(rl.Stdout(), "Connection closed by server: %v\n", closeErr)
				} else if !errors.Is(err, client.ErrClosed) {
					fmt.Fprintf(rl.Stdout(), "Read error: %v\n", err)
				}
				return
			}
			fmt.Fprintf(rl.Stdout(), "< [%s] %s\n", messageType, payload)
		}
	}()

	for {
		select {
		case <-done:
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if !strings.HasPrefix(input, "/") {
			if err := conn.WriteText(input); err != nil {
				fmt.Fprintf(rl.Stdout(), "Write error: %v\n", err)
			}
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "/help", "/?":
			printHelp(rl)

		case "/ping":
			var payload []byte
			if len(args) > 0 {
				payload = []byte(strings.Join(args, " "))
			}
			if err := conn.Ping(payload); err != nil {
				fmt.Fprintf(rl.Stdout(), "Ping error: %v\n", err)
			}

		case "/close":
			code := uint16(1000)
			if len(args) > 0 {
				parsed, err := strconv.ParseUint(args[0], 10, 16)
				if err != nil {
					fmt.Fprintf(rl.Stdout(), "Invalid close code: %s\n", args[0])
					continue
				}
				code = uint16(parsed)
			}
			if err := conn.SendClose(code, ""); err != nil {
				fmt.Fprintf(rl.Stdout(), "Close error: %v\n", err)
				continue
			}
			// The reader goroutine ends when the close reply arrives.
			<-done
			return nil

		case "/quit", "/exit", "/q":
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil

		default:
			fmt.Fprintf(rl.Stdout(), "Unknown command: %s (type /help for commands)\n", cmd)
		}
	}
}

// buildConfig resolves the client configuration from flags and, when a
// profile is requested or no URL is given, the wsdial config file.
func buildConfig(url *string, profileName, configPath string, insecure bool) (client.Config, error) {
	var config client.Config

	needsFile := profileName != "" || *url == ""
	if configPath == "" {
		configPath = cliconfig.FindDefault()
	}
	if needsFile && configPath != "" {
		file, err := cliconfig.Load(configPath)
		if err != nil {
			return client.Config{}, err
		}
		profile, err := file.Profile(profileName)
		if err != nil {
			if *url != "" {
				// A URL was given; a missing default profile is fine.
				profile = cliconfig.Profile{}
				err = nil
			} else {
				return client.Config{}, err
			}
		}
		if *url == "" {
			*url = profile.URL
		}
		config.BufferSize = profile.BufferSize
		for _, h := range profile.Headers {
			config.Header = append(config.Header, handshake.Header{Name: h.Name, Value: h.Value})
		}
		if profile.InsecureSkipVerify {
			insecure = true
		}
	}

	if insecure {
		config.Connector = transport.NewConnector(&tls.Config{InsecureSkipVerify: true})
	}
	return config, nil
}

func printHelp(rl *readline.Instance) {
	fmt.Fprint(rl.Stdout(), `Commands:
  <text>            send the line as a text frame
  /ping [payload]   send a ping frame
  /close [code]     send a close frame and wait for the reply
  /quit             drop the connection and exit
  /help             show this help
`)
}
