// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/eocon/internal/config"
	"github.com/Thermoquad/eocon/internal/logging"
	"github.com/Thermoquad/eocon/pkg/transport"
)

// version is set at build time with -ldflags "-X .../cmd.version=..."
var version = "0.1.0"

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Settings flags
	configPath  string
	metricsAddr string
	logLevel    string

	// Resolved before every command runs
	settings config.Config
	logger   = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "eocon",
	Short: "EnOcean ESP3 Serial Connector",
	Long: `eocon - A CLI tool for talking to EnOcean transceivers over ESP3.

Receives, decodes and dispatches ESP3 packets from a USB300-class gateway and
sends common commands back to it.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 57600]
  WebSocket: --url ws://host/path [--username user]

Settings are read from --config (TOML) and overridden by flags. For WebSocket
authentication, the password is read from the EOCON_PASSWORD environment
variable, or prompted interactively if not set. The --password flag is
intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", transport.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Settings flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9108)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
}

// loadSettings layers defaults, the config file and changed flags, in that
// order, then builds the logger
func loadSettings(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
		cfg.WebSocket.URL = ""
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.WebSocket.URL = wsURL
		cfg.Serial.Port = ""
	}
	if flags.Changed("username") {
		cfg.WebSocket.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.WebSocket.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	settings = cfg
	logger = logging.New(cfg.Log.Logging())
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
