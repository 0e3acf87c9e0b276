// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/listeners"
)

var (
	recordOutput   string
	recordAppend   bool
	recordTypes    string
	recordDuration int
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record received packets to a capture file",
	Long: `Record decoded packets to a CBOR capture file until Ctrl+C or --duration.

Each record keeps the receive timestamp, packet type, data, optional data and
checksum result, so a capture can be replayed or inspected later with
'eocon replay'.

Examples:
  eocon record --port /dev/ttyUSB0 -o office.cbor
  eocon record --port /dev/ttyUSB0 -o office.cbor --append --types radio`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "Capture file to write")
	recordCmd.Flags().BoolVar(&recordAppend, "append", false, "Append to an existing capture file")
	recordCmd.Flags().StringVarP(&recordTypes, "types", "t", "", "Comma-separated packet types to record (default all)")
	recordCmd.Flags().IntVar(&recordDuration, "duration", 0, "Stop after this many seconds (0 runs until Ctrl+C)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	if recordOutput == "" {
		return errors.New("--output is required")
	}
	if recordTypes != "" {
		if _, err := listeners.ParseTypes(recordTypes); err != nil {
			return err
		}
	}
	// The recorder opens the file when acquisition starts; fail early instead
	f, err := os.OpenFile(recordOutput, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	f.Close()

	t, port, info, err := openTransport()
	if err != nil {
		return err
	}
	if port == "" {
		return errNoConnection
	}
	c, err := newConnector(t)
	if err != nil {
		return err
	}
	defer c.Close()

	recorder := listeners.NewRecorder(logger)
	props := connector.Properties{
		listeners.PropPath:   recordOutput,
		listeners.PropAppend: strconv.FormatBool(recordAppend),
	}
	if recordTypes != "" {
		props[listeners.PropTypes] = recordTypes
	}
	if err := c.AddPacketListener("record", recorder, props); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := startOn(c, port); err != nil {
		return err
	}
	serveMetrics(ctx, c)

	fmt.Printf("eocon - Record\n")
	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Output: %s\n", recordOutput)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	var deadline <-chan time.Time
	if recordDuration > 0 {
		deadline = time.After(time.Duration(recordDuration) * time.Second)
	}
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()

	start := time.Now()
loop:
	for {
		select {
		case <-progress.C:
			fmt.Printf("[%s] %d packets recorded\n", time.Now().Format("15:04:05.000"), recorder.Count())
		case <-deadline:
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	if err := c.StopAcquisition(); err != nil {
		logger.Warn().Err(err).Msg("failed to stop acquisition")
	}
	c.Flush()

	fmt.Printf("\n--- Record summary ---\n")
	fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Second))
	fmt.Printf("Packets recorded: %d\n", recorder.Count())
	return nil
}
