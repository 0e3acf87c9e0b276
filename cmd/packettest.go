// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
	"github.com/Thermoquad/eocon/pkg/listeners"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid ESP3 packet",
	Long: `Wait for a valid ESP3 packet on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any ESP3
packet whose header and payload checksums both pass. Bytes before the first
sync byte and frames with a bad checksum are skipped.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for testing connectivity to a USB gateway or a WebSocket bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	code, err := waitForPacket(os.Stdout, time.Duration(packetTestTimeout)*time.Second)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// waitForPacket waits for one valid packet and describes it on w. It returns
// the process exit code: 0 on success, 1 on timeout and 2 when the
// connection failed.
func waitForPacket(w io.Writer, timeout time.Duration) (int, error) {
	packets := listeners.NewForwarder(16)
	c, info, err := openConnector(func(c *connector.Connector) error {
		return c.AddPacketListener("packet_test", packets, nil)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return 2, nil
	}
	defer c.Close()

	fmt.Fprintf(w, "eocon - Packet Test\n")
	fmt.Fprintf(w, "Connection: %s\n", info)
	fmt.Fprintf(w, "Timeout: %v\n", timeout)
	fmt.Fprintf(w, "Waiting for valid ESP3 packet...\n\n")

	deadline := time.After(timeout)
	for {
		select {
		case m := <-packets.C():
			if !m.Valid() {
				continue
			}
			stats := c.Statistics()
			if skipped := stats.SkippedBytes; skipped > 0 {
				fmt.Fprintf(w, "(skipped %d invalid bytes before sync)\n", skipped)
			}
			if stats.PayloadErrors > 0 || stats.HeaderRejects > 0 {
				fmt.Fprintf(w, "(discarded %d frames with bad checksums)\n", stats.PayloadErrors+stats.HeaderRejects)
			}
			fmt.Fprintf(w, "SUCCESS: Received valid packet\n")
			fmt.Fprintf(w, "  Type: %s (0x%02X)\n", esp3.FormatPacketType(m.Type()), byte(m.Type()))
			fmt.Fprintf(w, "  Data: %d bytes\n", len(m.Data()))
			fmt.Fprintf(w, "  Optional: %d bytes\n", len(m.Optional()))
			if r, ok := m.(*esp3.RadioPacket); ok {
				fmt.Fprintf(w, "  %s\n", listeners.FormatShort(r))
			}
			return 0, nil

		case <-deadline:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %v\n", timeout)
			return 1, nil
		}
	}
}
