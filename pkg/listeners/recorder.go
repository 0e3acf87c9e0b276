// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package listeners

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Recorder writes received packets to a CBOR capture file named by the path
// property. The file is opened on Initialize and closed on Close.
type Recorder struct {
	log zerolog.Logger

	mu     sync.Mutex
	types  []esp3.PacketType
	path   string
	file   *os.File
	buf    *bufio.Writer
	w      *esp3.CaptureWriter
	failed int
}

// NewRecorder creates a recorder
func NewRecorder(log zerolog.Logger) *Recorder {
	return &Recorder{
		log:   log.With().Str("listener", "recorder").Logger(),
		types: []esp3.PacketType{esp3.TypeAny},
	}
}

// Initialize opens the capture file
func (r *Recorder) Initialize(props connector.Properties, _ connector.Outbox) error {
	types, err := typesFrom(props)
	if err != nil {
		return err
	}
	path := props.Get(PropPath, "")
	if path == "" {
		return errors.New("recorder requires a path property")
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if props.Get(PropAppend, "false") == "true" {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		r.closeLocked()
	}
	r.types = types
	r.path = path
	r.file = f
	r.buf = bufio.NewWriter(f)
	r.w = esp3.NewCaptureWriter(r.buf)
	r.failed = 0
	r.log.Info().Str("path", path).Msg("recording packets")
	return nil
}

// Close flushes and closes the capture file
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Recorder) closeLocked() {
	if r.file == nil {
		return
	}
	if err := r.buf.Flush(); err != nil {
		r.log.Warn().Err(err).Str("path", r.path).Msg("failed to flush capture file")
	}
	if err := r.file.Close(); err != nil {
		r.log.Warn().Err(err).Str("path", r.path).Msg("failed to close capture file")
	}
	r.log.Info().Str("path", r.path).Int("records", r.w.Count()).Msg("capture closed")
	r.file = nil
	r.buf = nil
}

// ReceivePacket appends m to the capture. Packets delivered after Close are
// dropped.
func (r *Recorder) ReceivePacket(m esp3.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return
	}
	if err := r.w.Write(m); err != nil {
		r.failed++
		r.log.Warn().Err(err).Msg("failed to record packet")
	}
}

// SupportedPackets returns the configured types
func (r *Recorder) SupportedPackets() []esp3.PacketType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.types
}

// Count returns the number of records written to the current or last file
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return 0
	}
	return r.w.Count()
}
