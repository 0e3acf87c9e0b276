// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   zerolog.Level
		wantOK bool
	}{
		{"trace", zerolog.TraceLevel, true},
		{"DEBUG", zerolog.DebugLevel, true},
		{" info ", zerolog.InfoLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"off", zerolog.Disabled, true},
		{"", zerolog.WarnLevel, false},
		{"verbose", zerolog.WarnLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	var buf bytes.Buffer
	log := New(Config{Level: "info", NoColor: true, Out: &buf})

	log.Debug().Msg("hidden")
	log.Info().Str("port", "/dev/ttyUSB0").Msg("opened port")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at info level: %q", out)
	}
	if !strings.Contains(out, "opened port") || !strings.Contains(out, "port=/dev/ttyUSB0") {
		t.Errorf("output %q missing info message", out)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "false")

	var buf bytes.Buffer
	log := New(Config{Level: "error", Timestamp: true, Out: &buf})
	if log.GetLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
	log.Debug().Msg("visible")
	if out := buf.String(); !strings.Contains(out, "visible") || strings.Contains(out, "\x1b[") {
		t.Errorf("output %q, want uncolored debug message", out)
	}
}

func TestEnvOverrideIgnoresUnknownLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")
	log := New(Config{Level: "error", Out: &bytes.Buffer{}})
	if log.GetLevel() != zerolog.ErrorLevel {
		t.Errorf("level = %v, want error", log.GetLevel())
	}
}
