// Command wsdial-bench measures WebSocket round-trip performance.
//
// By default it starts an in-process echo server on a loopback port and
// drives message round trips against it, reporting throughput and
// latency percentiles. With -url it benchmarks an external echo
// endpoint instead.
//
// Scenarios come from flags (-size, -messages) or from the scenarios
// section of the wsdial YAML configuration file:
//
//	scenarios:
//	  - name: small
//	    size: 256
//	    messages: 10000
//	  - name: bulk
//	    size: 65536
//	    messages: 1000
//
// Examples:
//
//	# 1000 round trips of 256-byte messages against the built-in server
//	wsdial-bench -size 256 -messages 1000
//
//	# Run a named scenario from wsdial.yaml against an external server
//	wsdial-bench -scenario bulk -url ws://10.0.0.5:9001/echo
//
//	# Compare buffer sizes
//	wsdial-bench -size 65536 -buffer 8192
//	wsdial-bench -size 65536 -buffer 65536
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/wsdial/wsdial/internal/cliconfig"
	"github.com/wsdial/wsdial/internal/wstest"
	"github.com/wsdial/wsdial/pkg/client"
)

const defaultMessages = 1000

func main() {
	url := flag.String("url", "", "Echo endpoint to benchmark (default: in-process server)")
	scenario := flag.String("scenario", "", "Scenario name from the wsdial config file")
	configPath := flag.String("config", "", "Config file path (default: auto-detect)")
	size := flag.Int("size", 1024, "Message payload size in bytes")
	messages := flag.Int("messages", defaultMessages, "Number of round trips")
	buffer := flag.Int("buffer", 0, "Stream buffer size in bytes (0 = default)")
	flag.Parse()

	if err := run(*url, *scenario, *configPath, *size, *messages, *buffer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(url, scenarioName, configPath string, size, messages, buffer int) error {
	name := "adhoc"
	if scenarioName != "" {
		if configPath == "" {
			configPath = cliconfig.FindDefault()
		}
		if configPath == "" {
			return fmt.Errorf("scenario %q requested but no config file found", scenarioName)
		}
		file, err := cliconfig.Load(configPath)
		if err != nil {
			return err
		}
		scenario, err := file.Scenario(scenarioName)
		if err != nil {
			return err
		}
		name = scenario.Name
		size = scenario.Size
		if scenario.Messages > 0 {
			messages = scenario.Messages
		} else {
			messages = defaultMessages
		}
	}
	if size <= 0 {
		return fmt.Errorf("message size must be positive, got %d", size)
	}
	if messages <= 0 {
		return fmt.Errorf("message count must be positive, got %d", messages)
	}

	if url == "" {
		server, err := wstest.StartEcho()
		if err != nil {
			return err
		}
		defer server.Close()
		url = server.URL
		fmt.Printf("Started in-process echo server at %s\n", url)
	}

	fmt.Printf("Scenario %s: %d round trips, %d-byte messages\n", name, messages, size)

	result, err := runScenario(url, size, messages, buffer)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

// result holds the measurements of one benchmark run.
type result struct {
	Messages  int
	Size      int
	Elapsed   time.Duration
	Latencies []time.Duration
}

func runScenario(url string, size, messages, buffer int) (*result, error) {
	conn, err := client.New(client.Config{BufferSize: buffer}).Dial(context.Background(), url, nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	// Warm up one round trip so connection setup effects stay out of
	// the measured window.
	if err := roundTrip(conn, payload); err != nil {
		return nil, fmt.Errorf("warmup round trip: %w", err)
	}

	latencies := make([]time.Duration, 0, messages)
	start := time.Now()
	for i := 0; i < messages; i++ {
		sent := time.Now()
		if err := roundTrip(conn, payload); err != nil {
			return nil, fmt.Errorf("round trip %d: %w", i+1, err)
		}
		latencies = append(latencies, time.Since(sent))
	}
	elapsed := time.Since(start)

	conn.SendClose(1000, "")
	return &result{
		Messages:  messages,
		Size:      size,
		Elapsed:   elapsed,
		Latencies: latencies,
	}, nil
}

func roundTrip(conn *client.Conn, payload []byte) error {
	if err := conn.WriteBinary(payload); err != nil {
		return err
	}
	_, echoed, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	if len(echoed) != len(payload) {
		return fmt.Errorf("echo size mismatch: sent %d, got %d", len(payload), len(echoed))
	}
	return nil
}

func printResult(r *result) {
	sorted := make([]time.Duration, len(r.Latencies))
	copy(sorted, r.Latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	perSecond := float64(r.Messages) / r.Elapsed.Seconds()
	bytesPerSecond := perSecond * float64(r.Size) * 2 // echoed back, so both directions

	fmt.Println()
	fmt.Printf("Elapsed:    %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Printf("Throughput: %.0f msg/s (%.2f MiB/s)\n", perSecond, bytesPerSecond/(1024*1024))
	fmt.Println("Latency:")
	fmt.Printf("  min  %s\n", sorted[0])
	fmt.Printf("  p50  %s\n", percentile(sorted, 50))
	fmt.Printf("  p90  %s\n", percentile(sorted, 90))
	fmt.Printf("  p99  %s\n", percentile(sorted, 99))
	fmt.Printf("  max  %s\n", sorted[len(sorted)-1])
}

// percentile returns the p-th percentile of sorted latencies using
// nearest-rank selection.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
