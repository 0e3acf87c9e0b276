// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
	"github.com/Thermoquad/eocon/pkg/listeners"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"control"},
	Short:   "Interactive terminal UI for an EnOcean transceiver",
	Long: `Monitor and control an EnOcean transceiver via an interactive terminal UI.

Features:
  - Device list of every radio sender seen, with RORG and signal strength
  - Decoder, delivery and link statistics
  - Event log of received packets and errors
  - Command line for sending common commands (same syntax as 'eocon send')
  - Automatic reconnection on connection loss

Tab switches between the device list and the command line. Arrow keys
navigate the device list. Enter sends the typed command.

Supports both serial and WebSocket connections.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// Messages sent into the program from connector goroutines
type (
	tuiTickMsg      time.Time
	packetBatchMsg  []esp3.Message
	statusMsg       connector.ConnectionStatus
	connectionMsg   struct{ lost bool }
	commandErrorMsg struct{ err error }
)

func runTUI(cmd *cobra.Command, args []string) error {
	packets := listeners.NewForwarder(512)
	statuses := make(chan connector.ConnectionStatus, 8)
	c, info, err := openConnector(func(c *connector.Connector) error {
		if err := c.AddPacketListener("tui", packets, nil); err != nil {
			return err
		}
		status := connector.EventFunc[connector.ConnectionStatus](func(s connector.ConnectionStatus) {
			select {
			case statuses <- s:
			default:
			}
		})
		return c.AddConnectionListener("tui", status)
	})
	if err != nil {
		return err
	}
	defer c.Close()

	m := initialTUIModel(c, packets, info)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	ctx, cancel := signalContext()
	defer cancel()
	serveMetrics(ctx, c)
	go forwardStatus(ctx, statuses, p)
	go keepAlive(ctx, c, func(lost bool) { p.Send(connectionMsg{lost: lost}) })
	go batchPackets(ctx, packets, p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// forwardStatus hands connection status changes to the program
func forwardStatus(ctx context.Context, statuses <-chan connector.ConnectionStatus, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-statuses:
			p.Send(statusMsg(s))
		}
	}
}

// batchPackets forwards received packets to the program at a fixed rate
func batchPackets(ctx context.Context, packets *listeners.Forwarder, p *tea.Program) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var batch packetBatchMsg
	drain:
		for len(batch) < 256 {
			select {
			case m := <-packets.C():
				batch = append(batch, m)
			default:
				break drain
			}
		}
		if len(batch) > 0 {
			p.Send(batch)
		}
	}
}

func tuiTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tuiTickMsg(t)
	})
}

// sendCommandCmd builds and queues a command typed into the command line
func sendCommandCmd(c *connector.Connector, args []string) tea.Cmd {
	return func() tea.Msg {
		m, err := buildCommand(args)
		if err == nil {
			err = c.SendPacket(m)
		}
		if err != nil {
			return commandErrorMsg{err: err}
		}
		return nil
	}
}
