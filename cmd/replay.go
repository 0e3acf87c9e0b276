// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
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
	replayFormat    string
	replayTypes     string
	replaySummary   bool
	replayTransmit  bool
	replaySpeed     float64
	replayMaxPacket int
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Print or retransmit a capture file",
	Long: `Read a capture file written by 'eocon record'.

By default every packet is printed like 'eocon monitor' does. With --summary
only per-type counts are printed. With --transmit the packets are sent to the
transceiver on --port/--url, keeping the recorded gaps scaled by --speed.

Examples:
  eocon replay office.cbor --types radio --format short
  eocon replay office.cbor --summary
  eocon replay office.cbor --transmit --port /dev/ttyUSB0 --speed 10`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", "full", "Output format: full, short or hex")
	replayCmd.Flags().StringVarP(&replayTypes, "types", "t", "", "Comma-separated packet types to replay (default all)")
	replayCmd.Flags().BoolVarP(&replaySummary, "summary", "s", false, "Print counts only")
	replayCmd.Flags().BoolVar(&replayTransmit, "transmit", false, "Send the packets to the transceiver")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1, "Replay speed factor for --transmit (0 sends without delay)")
	replayCmd.Flags().IntVarP(&replayMaxPacket, "limit", "n", 0, "Stop after this many packets (0 for all)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	types := []esp3.PacketType{esp3.TypeAny}
	if replayTypes != "" {
		var err error
		if types, err = listeners.ParseTypes(replayTypes); err != nil {
			return err
		}
	}
	if replaySpeed < 0 {
		return errors.New("--speed must not be negative")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	reader := esp3.NewCaptureReader(bufio.NewReader(f))

	var sink func(esp3.Message) error
	switch {
	case replayTransmit:
		c, info, err := openConnector(nil)
		if err != nil {
			return err
		}
		defer c.Close()
		fmt.Printf("Transmitting to %s\n\n", info)
		sink = transmitSink(c)
	case replaySummary:
		sink = func(esp3.Message) error { return nil }
	default:
		printer := listeners.NewPrinter(os.Stdout)
		if err := printer.Initialize(connector.Properties{listeners.PropFormat: replayFormat}, nil); err != nil {
			return err
		}
		sink = func(m esp3.Message) error {
			printer.ReceivePacket(m)
			return nil
		}
	}

	counts := make(map[esp3.PacketType]int)
	total, invalid := 0, 0
	var first, last time.Time
	for replayMaxPacket == 0 || total < replayMaxPacket {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		m, err := rec.Message(nil)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping capture record")
			continue
		}
		if !matchesTypes(types, m.Type()) {
			continue
		}

		if replayTransmit && replaySpeed > 0 && !last.IsZero() {
			if gap := m.Timestamp().Sub(last); gap > 0 {
				time.Sleep(time.Duration(float64(gap) / replaySpeed))
			}
		}
		if first.IsZero() {
			first = m.Timestamp()
		}
		last = m.Timestamp()

		if err := sink(m); err != nil {
			return err
		}
		total++
		counts[m.Type()]++
		if !m.Valid() {
			invalid++
		}
	}

	fmt.Printf("\n--- Replay summary ---\n")
	fmt.Printf("Packets: %d (%d with bad checksum)\n", total, invalid)
	if total > 0 {
		fmt.Printf("Span: %s to %s (%v)\n",
			first.Format("2006-01-02 15:04:05.000"), last.Format("15:04:05.000"), last.Sub(first).Round(time.Millisecond))
	}
	for code := 0; code <= 0xFF; code++ {
		kind := esp3.PacketType(code)
		if n := counts[kind]; n > 0 {
			fmt.Printf("  %-20s %6d\n", esp3.FormatPacketType(kind)+":", n)
		}
	}
	return nil
}

// transmitSink queues each packet on c and waits for the write loop to pick
// it up, so a long capture does not overflow the outbound queue
func transmitSink(c *connector.Connector) func(esp3.Message) error {
	return func(m esp3.Message) error {
		if err := c.SendPacket(m); err != nil {
			return err
		}
		for {
			if _, outbound := c.QueueDepths(); outbound == 0 {
				return nil
			}
			time.Sleep(time.Millisecond)
		}
	}
}

func matchesTypes(types []esp3.PacketType, kind esp3.PacketType) bool {
	for _, t := range types {
		if t == esp3.TypeAny || t == kind {
			return true
		}
	}
	return false
}
