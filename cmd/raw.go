// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var rawDuration int

var rawCmd = &cobra.Command{
	Use:     "raw",
	Aliases: []string{"ws_test"},
	Short:   "Dump raw bytes and test connection stability",
	Long: `Open the connection without decoding and print every chunk of bytes read.

This command bypasses the ESP3 decoder entirely. It is useful for checking
baud rate, wiring and WebSocket bridge stability before looking at packets.

Exit codes:
  0 - Test completed normally
  1 - Connection failed during the test
  2 - Connection error`,
	RunE: runRaw,
}

func init() {
	rootCmd.AddCommand(rawCmd)
	rawCmd.Flags().IntVar(&rawDuration, "duration", 30, "Test duration in seconds")
}

func runRaw(cmd *cobra.Command, args []string) error {
	t, port, info, err := openTransport()
	if err == nil && port == "" {
		err = errNoConnection
	}
	if err == nil {
		err = t.Open(port)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer t.Close()

	fmt.Printf("eocon - Raw Connection Test\n")
	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Duration: %d seconds\n\n", rawDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := t.Read(buf)
			if err != nil {
				select {
				case errChan <- err:
				case <-done:
				}
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case readChan <- data:
				case <-done:
					return
				}
			}
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	endTime := start.Add(time.Duration(rawDuration) * time.Second)
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	chunks, bytesReceived := 0, 0
	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			chunks++
			fmt.Printf("[%s] Received %d bytes: % X\n",
				time.Now().Format("15:04:05.000"), len(data), data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			printRawResults(time.Since(start), chunks, bytesReceived, "FAILED (connection error)")
			t.Close()
			os.Exit(1)

		case <-heartbeat.C:
			if chunks == 0 {
				fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
					time.Now().Format("15:04:05.000"), time.Until(endTime).Seconds())
			}

		case <-ctx.Done():
			printRawResults(time.Since(start), chunks, bytesReceived, "INTERRUPTED")
			return nil
		}
	}

	printRawResults(time.Since(start), chunks, bytesReceived, "PASSED (connection stable)")
	return nil
}

func printRawResults(elapsed time.Duration, chunks, bytes int, result string) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Reads: %d\n", chunks)
	fmt.Printf("Bytes received: %d\n", bytes)
	fmt.Printf("Result: %s\n", result)
}
