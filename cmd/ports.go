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
	portsWatch   bool
	portsProbe   bool
	portsTimeout int
)

var portsCmd = &cobra.Command{
	Use:     "ports",
	Aliases: []string{"discovery"},
	Short:   "List serial ports and find EnOcean transceivers",
	Long: `List the ports the transport can open.

Modes:
  List (default): Print the available ports once.

  Watch (--watch): Keep running and print the port list every time a port
                   appears or disappears.

  Probe (--probe): Open each port in turn and send CO_RD_VERSION. Ports that
                   answer with a valid RESPONSE are reported as transceivers.

Examples:
  eocon ports
  eocon ports --probe --timeout 1
  eocon ports --watch

Exit codes:
  0 - At least one port (or transceiver, with --probe) found
  1 - Nothing found
  2 - Connection error`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVarP(&portsWatch, "watch", "w", false, "Print the port list whenever it changes")
	portsCmd.Flags().BoolVar(&portsProbe, "probe", false, "Probe each port for an ESP3 transceiver")
	portsCmd.Flags().IntVar(&portsTimeout, "timeout", 2, "Timeout in seconds for each probe")
}

func runPorts(cmd *cobra.Command, args []string) error {
	t, _, info, err := openTransport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("eocon - Port Discovery\n")
	fmt.Printf("Transport: %s\n\n", info)

	switch {
	case portsWatch:
		return watchPorts(t)
	case portsProbe:
		return probePorts(t)
	}

	ports, err := t.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list ports: %v\n", err)
		os.Exit(2)
	}
	printPorts(ports)
	if len(ports) == 0 {
		os.Exit(1)
	}
	return nil
}

func printPorts(ports []string) {
	if len(ports) == 0 {
		fmt.Printf("No ports found.\n")
		return
	}
	fmt.Printf("Ports found: %d\n", len(ports))
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
}

// watchPorts prints the connector's port list on every change
func watchPorts(t connector.Transport) error {
	c, err := newConnector(t)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	changes := make(chan []string, 4)
	observer := connector.EventFunc[[]string](func(ports []string) {
		select {
		case changes <- ports:
		default:
		}
	})
	if err := c.AddPortListener("ports", observer); err != nil {
		return err
	}

	fmt.Printf("Watching for port changes, press Ctrl+C to exit\n\n")
	for {
		select {
		case ports := <-changes:
			fmt.Printf("[%s] ", time.Now().Format("15:04:05.000"))
			printPorts(ports)
			fmt.Println()
		case <-ctx.Done():
			return nil
		}
	}
}

// probePorts asks every port for its version
func probePorts(t connector.Transport) error {
	ports, err := t.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list ports: %v\n", err)
		os.Exit(2)
	}

	found := 0
	for _, port := range ports {
		fmt.Printf("Probing %s... ", port)
		v, err := probePort(t, port)
		if err != nil {
			fmt.Printf("%v\n", err)
			continue
		}
		found++
		fmt.Printf("transceiver found\n  %s\n", v)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Transceivers found: %d of %d ports\n", found, len(ports))
	if found == 0 {
		fmt.Printf("No transceivers discovered. Check connection and baud rate.\n")
		os.Exit(1)
	}
	return nil
}

func probePort(t connector.Transport, port string) (esp3.VersionInfo, error) {
	c, err := connector.New(t, append(settings.Connector.Options(), connector.WithLogger(logger))...)
	if err != nil {
		return esp3.VersionInfo{}, err
	}
	defer c.Close()

	responses := listeners.NewForwarder(4, esp3.TypeResponse)
	if err := c.AddPacketListener("probe", responses, nil); err != nil {
		return esp3.VersionInfo{}, err
	}
	if err := startOn(c, port); err != nil {
		return esp3.VersionInfo{}, err
	}

	resp, err := request(c, responses, esp3.NewReadVersion(), time.Duration(portsTimeout)*time.Second)
	if err != nil {
		return esp3.VersionInfo{}, err
	}
	return esp3.ParseVersionResponse(resp)
}
