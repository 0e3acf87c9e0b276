// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
	"github.com/Thermoquad/eocon/pkg/listeners"
)

var (
	monitorTypes         string
	monitorFormat        string
	monitorStatsInterval int
	monitorQuiet         bool
	monitorReconnect     bool
	monitorValidate      bool
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"raw_log"},
	Short:   "Display received packets in human-readable format",
	Long: `Continuously decode and display ESP3 packets as they arrive.

Each packet is printed with timestamp, packet type and decoded fields. Listeners
declared in the configuration file run alongside the console printer, and
decoder statistics are printed periodically and on exit.

Examples:
  # Radio telegrams only, one line each
  eocon monitor --port /dev/ttyUSB0 --types radio --format short

  # Statistics only, with Prometheus metrics
  eocon monitor --port /dev/ttyUSB0 --quiet --metrics-addr :9108

  # Log malformed packets (bad checksums, wrong lengths, unknown codes)
  eocon monitor --port /dev/ttyUSB0 --quiet --validate

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorTypes, "types", "t", "", "Comma-separated packet types to print (default all)")
	monitorCmd.Flags().StringVarP(&monitorFormat, "format", "f", "full", "Output format: full, short or hex")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 0, "Statistics interval in seconds (0 prints only on exit)")
	monitorCmd.Flags().BoolVarP(&monitorQuiet, "quiet", "q", false, "Do not print packets")
	monitorCmd.Flags().BoolVar(&monitorReconnect, "reconnect", true, "Reconnect when the connection is lost")
	monitorCmd.Flags().BoolVar(&monitorValidate, "validate", false, "Check each packet for anomalies and log them")
}

func runMonitor(cmd *cobra.Command, args []string) error {
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

	printer := listeners.NewPrinter(os.Stdout)
	if !monitorQuiet {
		props := connector.Properties{listeners.PropFormat: monitorFormat}
		if monitorTypes != "" {
			props[listeners.PropTypes] = monitorTypes
		}
		if err := c.AddPacketListener("console", printer, props); err != nil {
			return err
		}
	}

	validator := listeners.NewValidator(logger)
	if monitorValidate {
		var props connector.Properties
		if monitorTypes != "" {
			props = connector.Properties{listeners.PropTypes: monitorTypes}
		}
		if err := c.AddPacketListener("anomalies", validator, props); err != nil {
			return err
		}
	}

	status := connector.EventFunc[connector.ConnectionStatus](func(s connector.ConnectionStatus) {
		logger.Info().Str("status", s.String()).Msg("connection status")
	})
	if err := c.AddConnectionListener("console", status); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := startOn(c, port); err != nil {
		return err
	}

	fmt.Printf("eocon - Packet Monitor\n")
	fmt.Printf("Connection: %s\n", info)
	if names := c.Listeners(); len(names) > 0 {
		fmt.Printf("Listeners: %v\n", names)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	serveMetrics(ctx, c)
	if monitorReconnect {
		go keepAlive(ctx, c, nil)
	}

	var tick <-chan time.Time
	if monitorStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			fmt.Println()
			fmt.Print(c.Statistics().String())
			fmt.Println()

		case <-ctx.Done():
			if err := c.StopAcquisition(); err != nil {
				logger.Warn().Err(err).Msg("failed to stop acquisition")
			}
			c.Flush()
			printSummary(c, printer.Count())
			if monitorValidate {
				printAnomalies(validator)
			}
			return nil
		}
	}
}

// printSummary prints decoder, delivery and link counters
func printSummary(c *connector.Connector, printed uint64) {
	delivered, failed := c.DeliveryStats()
	link := c.LinkStats()

	fmt.Println()
	fmt.Print(c.Statistics().String())
	fmt.Printf("Printed:         %8d\n", printed)
	fmt.Printf("Deliveries:      %8d (%d failed)\n", delivered, failed)
	fmt.Printf("Bytes In/Out:    %8d / %d\n", link.BytesIn, link.BytesOut)
	if link.ReadErrors > 0 || link.WriteErrors > 0 {
		fmt.Printf("I/O Errors:      %8d read, %d write\n", link.ReadErrors, link.WriteErrors)
	}
}

// printAnomalies prints the validator's counts by anomaly type
func printAnomalies(v *listeners.Validator) {
	anomalies := v.Anomalies()
	fmt.Printf("Validated:       %8d\n", v.Checked())
	for a := esp3.AnomalyChecksum; a <= esp3.AnomalyUnknownType; a++ {
		if n := anomalies[a]; n > 0 {
			fmt.Printf("  %-15s%8d\n", a.String()+":", n)
		}
	}
}
