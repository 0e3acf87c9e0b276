// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the application's zerolog logger
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Environment overrides, applied on top of the configured values
const (
	EnvLogLevel     = "EOCON_LOG_LEVEL"
	EnvLogNoColor   = "EOCON_LOG_NOCOLOR"
	EnvLogTimestamp = "EOCON_LOG_TIMESTAMP"
)

// Config selects the logger level and console output style
type Config struct {
	Level     string
	NoColor   bool
	Timestamp bool
	Out       io.Writer
}

// DefaultConfig logs warnings and above to stderr with timestamps
func DefaultConfig() Config {
	return Config{Level: "warn", Timestamp: true}
}

// New builds a console logger from cfg after applying environment overrides
func New(cfg Config) zerolog.Logger {
	applyEnvOverrides(&cfg)

	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	writer := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: "15:04:05.000",
	}

	level, ok := ParseLevel(cfg.Level)
	if !ok {
		level = zerolog.WarnLevel
	}

	ctx := zerolog.New(writer).Level(level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv(EnvLogLevel); strings.TrimSpace(raw) != "" {
		if _, ok := ParseLevel(raw); ok {
			cfg.Level = raw
		}
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
}

// ParseLevel maps a level name to a zerolog level. The second result is
// false for unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.WarnLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
