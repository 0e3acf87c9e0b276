// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads eocon's TOML configuration file
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/eocon/internal/logging"
	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/transport"
)

// Config is the whole configuration file
type Config struct {
	Serial    SerialConfig     `toml:"serial"`
	WebSocket WebSocketConfig  `toml:"websocket"`
	Connector ConnectorConfig  `toml:"connector"`
	Log       LogConfig        `toml:"log"`
	Metrics   MetricsConfig    `toml:"metrics"`
	Listeners []ListenerConfig `toml:"listener"`
}

// SerialConfig selects a local serial port
type SerialConfig struct {
	Port string `toml:"port"`
	Baud int    `toml:"baud"`
}

// WebSocketConfig selects a WebSocket serial bridge. The password is never
// read from the file.
type WebSocketConfig struct {
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
}

// ConnectorConfig tunes the connector loops
type ConnectorConfig struct {
	DecodeIntervalMs    int  `toml:"decode_interval_ms"`
	IOIntervalMs        int  `toml:"io_interval_ms"`
	PortPollIntervalMs  int  `toml:"port_poll_interval_ms"`
	DispatchWorkers     int  `toml:"dispatch_workers"`
	OutboundLimit       int  `toml:"outbound_limit"`
	RetainPartialFrames bool `toml:"retain_partial_frames"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level     string `toml:"level"`
	NoColor   bool   `toml:"no_color"`
	Timestamp bool   `toml:"timestamp"`
}

// MetricsConfig configures the Prometheus endpoint; an empty Addr disables it
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// ListenerConfig declares one packet listener
type ListenerConfig struct {
	Name       string            `toml:"name"`
	Kind       string            `toml:"kind"`
	Types      string            `toml:"types"`
	Properties map[string]string `toml:"properties"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Serial: SerialConfig{Baud: transport.DefaultBaudRate},
		Connector: ConnectorConfig{
			DecodeIntervalMs:    int(connector.DefaultDecodeInterval / time.Millisecond),
			IOIntervalMs:        int(connector.DefaultIOInterval / time.Millisecond),
			PortPollIntervalMs:  int(connector.DefaultPortPollInterval / time.Millisecond),
			DispatchWorkers:     connector.DefaultDispatchWorkers,
			RetainPartialFrames: true,
		},
		Log: LogConfig{Level: "warn", Timestamp: true},
	}
}

// Load reads path over the defaults. Keys the file does not set keep their
// default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config (%s): unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted
func (c Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.Port != "" && c.WebSocket.URL != "" {
		return errors.New("serial.port and websocket.url are mutually exclusive")
	}
	cc := c.Connector
	if cc.DecodeIntervalMs < 0 || cc.IOIntervalMs < 0 || cc.PortPollIntervalMs < 0 {
		return errors.New("connector intervals must not be negative")
	}
	if cc.DispatchWorkers < 0 || cc.OutboundLimit < 0 {
		return errors.New("connector.dispatch_workers and connector.outbound_limit must not be negative")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}

	seen := make(map[string]bool)
	for i, l := range c.Listeners {
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("listener[%d] missing name", i)
		}
		if strings.TrimSpace(l.Kind) == "" {
			return fmt.Errorf("listener[%d] (%s) missing kind", i, l.Name)
		}
		if seen[l.Name] {
			return fmt.Errorf("listener[%d] duplicate name %q", i, l.Name)
		}
		seen[l.Name] = true
	}
	return nil
}

// Options converts the connector section to connector options
func (c ConnectorConfig) Options() []connector.Option {
	opts := []connector.Option{
		connector.WithDecodeInterval(time.Duration(c.DecodeIntervalMs) * time.Millisecond),
		connector.WithIOInterval(time.Duration(c.IOIntervalMs) * time.Millisecond),
		connector.WithPortPollInterval(time.Duration(c.PortPollIntervalMs) * time.Millisecond),
		connector.WithDispatchWorkers(c.DispatchWorkers),
		connector.WithOutboundLimit(c.OutboundLimit),
	}
	if c.RetainPartialFrames {
		opts = append(opts, connector.WithPartialFrameRetention())
	}
	return opts
}

// Logging converts the log section to a logging configuration
func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, NoColor: c.NoColor, Timestamp: c.Timestamp}
}

// Props returns the listener properties with Types folded in
func (l ListenerConfig) Props() connector.Properties {
	props := make(connector.Properties, len(l.Properties)+1)
	for k, v := range l.Properties {
		props[k] = v
	}
	if l.Types != "" {
		props["types"] = l.Types
	}
	return props
}
