// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
	"github.com/Thermoquad/eocon/pkg/listeners"
)

var (
	sendTimeout int
	sendCount   int
)

// errNoResponse is returned when the module does not answer in time
var errNoResponse = errors.New("no response")

var sendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send a command to the transceiver and wait for its response",
	Long: `Send an ESP3 command to the transceiver and print the RESPONSE packet.

Commands:
  version                     Read the application/API version (CO_RD_VERSION)
  idbase                      Read the base ID (CO_RD_IDBASE)
  repeater                    Read the repeater configuration (CO_RD_REPEATER)
  repeater <on|off> [level]   Write the repeater configuration (CO_WR_REPEATER)
  learnmode                   Read the learn mode state (CO_RD_LEARNMODE)
  reset                       Reset the module (CO_WR_RESET)
  sleep <period>              Sleep for period x 10ms (CO_WR_SLEEP)
  raw <type> <data> [opt]     Send an arbitrary packet, data as hex

Examples:
  eocon send version --port /dev/ttyUSB0
  eocon send raw common 08 --port /dev/ttyUSB0
  eocon send version --count 5 --url ws://gateway.local/esp3

Exit codes:
  0 - All commands answered with RET_OK
  1 - One or more commands failed or timed out
  2 - Connection error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 2, "Timeout in seconds for each response")
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "Number of times to send the command")
}

func runSend(cmd *cobra.Command, args []string) error {
	code, err := sendCommands(os.Stdout, args)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// sendCommands sends the command sendCount times and reports each response
// on w. It returns the process exit code: 0 when every command was answered
// with RET_OK, 1 otherwise and 2 when the connection failed.
func sendCommands(w io.Writer, args []string) (int, error) {
	// Validate before touching the port
	if _, err := buildCommand(args); err != nil {
		return 0, err
	}

	responses := listeners.NewForwarder(16, esp3.TypeResponse)
	c, info, err := openConnector(func(c *connector.Connector) error {
		return c.AddPacketListener("send", responses, nil)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return 2, nil
	}
	defer c.Close()

	fmt.Fprintf(w, "eocon - Send Command\n")
	fmt.Fprintf(w, "Connection: %s\n\n", info)

	timeout := time.Duration(sendTimeout) * time.Second
	successCount := 0
	for i := 1; i <= sendCount; i++ {
		m, _ := buildCommand(args)
		fmt.Fprintf(w, "%s %d/%d: ", args[0], i, sendCount)

		start := time.Now()
		resp, err := request(c, responses, m, timeout)
		if err != nil {
			fmt.Fprintf(w, "FAILED: %v\n", err)
		} else if ok, text := describeResponse(args[0], resp); ok {
			fmt.Fprintf(w, "%s, rtt=%v\n", text, time.Since(start).Round(time.Millisecond))
			successCount++
		} else {
			fmt.Fprintf(w, "FAILED: %s\n", text)
		}

		if i < sendCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Fprintf(w, "\n--- Send statistics ---\n")
	fmt.Fprintf(w, "%d commands sent, %d answered OK\n", sendCount, successCount)
	if successCount < sendCount {
		return 1, nil
	}
	return 0, nil
}

// request queues m and waits for the next RESPONSE packet
func request(c *connector.Connector, responses *listeners.Forwarder, m esp3.Message, timeout time.Duration) (esp3.Message, error) {
	// Drop answers to earlier requests
drain:
	for {
		select {
		case <-responses.C():
		default:
			break drain
		}
	}

	if err := c.SendPacket(m); err != nil {
		return nil, err
	}

	select {
	case resp := <-responses.C():
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w in %v", errNoResponse, timeout)
	}
}

// buildCommand creates the packet for a send command line
func buildCommand(args []string) (esp3.Message, error) {
	if len(args) == 0 {
		return nil, errors.New("missing command")
	}
	name, rest := strings.ToLower(args[0]), args[1:]

	switch name {
	case "version":
		return esp3.NewReadVersion(), nil
	case "idbase":
		return esp3.NewReadIDBase(), nil
	case "learnmode":
		return esp3.NewReadLearnMode(), nil
	case "reset":
		return esp3.NewWriteReset(), nil

	case "repeater":
		if len(rest) == 0 {
			return esp3.NewReadRepeater(), nil
		}
		enable, err := parseOnOff(rest[0])
		if err != nil {
			return nil, err
		}
		level := uint64(1)
		if len(rest) > 1 {
			if level, err = strconv.ParseUint(rest[1], 0, 8); err != nil || level < 1 || level > 2 {
				return nil, fmt.Errorf("invalid repeater level %q (use 1 or 2)", rest[1])
			}
		}
		return esp3.NewWriteRepeater(enable, byte(level)), nil

	case "sleep":
		if len(rest) != 1 {
			return nil, errors.New("sleep requires a period")
		}
		period, err := strconv.ParseUint(rest[0], 0, 24)
		if err != nil {
			return nil, fmt.Errorf("invalid sleep period %q: %w", rest[0], err)
		}
		return esp3.NewWriteSleep(uint32(period)), nil

	case "raw":
		if len(rest) < 2 || len(rest) > 3 {
			return nil, errors.New("raw requires <type> <data> [optional]")
		}
		kind, err := esp3.ParsePacketType(rest[0])
		if err != nil {
			return nil, err
		}
		data, err := parseHex(rest[1])
		if err != nil {
			return nil, err
		}
		var optional []byte
		if len(rest) == 3 {
			if optional, err = parseHex(rest[2]); err != nil {
				return nil, err
			}
		}
		return esp3.NewPacket(kind, data, optional)

	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}

// describeResponse renders the response to the named command and reports
// whether the module accepted it
func describeResponse(name string, resp esp3.Message) (bool, string) {
	r, ok := resp.(*esp3.ResponsePacket)
	if !ok {
		return false, "unexpected " + esp3.FormatPacketType(resp.Type())
	}
	code, _ := r.ReturnCode()
	if !r.OK() {
		return false, esp3.FormatReturnCode(code)
	}

	switch strings.ToLower(name) {
	case "version":
		v, err := esp3.ParseVersionResponse(resp)
		if err != nil {
			return false, err.Error()
		}
		return true, v.String()
	case "idbase":
		id, err := esp3.ParseIDBaseResponse(resp)
		if err != nil {
			return false, err.Error()
		}
		if id.HasRemainingWrites {
			return true, fmt.Sprintf("base=%08X remaining_writes=%d", id.BaseID, id.RemainingWrites)
		}
		return true, fmt.Sprintf("base=%08X", id.BaseID)
	case "repeater":
		if data, _ := r.ResponseData(); len(data) == 0 {
			return true, esp3.FormatReturnCode(code)
		}
		rep, err := esp3.ParseRepeaterResponse(resp)
		if err != nil {
			return false, err.Error()
		}
		return true, fmt.Sprintf("enabled=%t level=%d", rep.Enabled, rep.Level)
	}

	if data, _ := r.ResponseData(); len(data) > 0 {
		return true, fmt.Sprintf("%s data=%s", esp3.FormatReturnCode(code), esp3.FormatHex(data))
	}
	return true, esp3.FormatReturnCode(code)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	default:
		return false, fmt.Errorf("invalid switch %q (use on or off)", s)
	}
}

// parseHex accepts "A5 02 FF", "a502ff" and "0xA502FF"
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
