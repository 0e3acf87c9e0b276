// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package listeners

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Printer formats every received packet onto a writer
type Printer struct {
	w io.Writer

	mu     sync.Mutex
	types  []esp3.PacketType
	format string
	count  uint64
}

// NewPrinter creates a printer writing to w (stdout when nil)
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, types: []esp3.PacketType{esp3.TypeAny}, format: "full"}
}

// Initialize reads the types and format properties
func (p *Printer) Initialize(props connector.Properties, _ connector.Outbox) error {
	types, err := typesFrom(props)
	if err != nil {
		return err
	}
	format := props.Get(PropFormat, "full")
	switch format {
	case "full", "short", "hex":
	default:
		return fmt.Errorf("invalid %s property: %q", PropFormat, format)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = types
	p.format = format
	p.count = 0
	return nil
}

// Close does nothing; the writer belongs to the caller
func (p *Printer) Close() {}

// ReceivePacket writes m in the configured format
func (p *Printer) ReceivePacket(m esp3.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count++
	switch p.format {
	case "short":
		fmt.Fprintln(p.w, FormatShort(m))
	case "hex":
		frame, err := esp3.EncodePacket(m)
		if err != nil {
			fmt.Fprintf(p.w, "encode error: %v\n", err)
			return
		}
		fmt.Fprintf(p.w, "%s %X\n", m.Timestamp().Format("15:04:05.000"), frame)
	default:
		fmt.Fprint(p.w, esp3.FormatPacket(m))
	}
}

// SupportedPackets returns the configured types
func (p *Printer) SupportedPackets() []esp3.PacketType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.types
}

// Count returns the number of packets printed since Initialize
func (p *Printer) Count() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// FormatShort returns a one-line summary of m
func FormatShort(m esp3.Message) string {
	status := "OK"
	if !m.Valid() {
		status = "CRC"
	}
	line := fmt.Sprintf("%s %-18s len=%-3d opt=%-3d %s",
		m.Timestamp().Format("15:04:05.000"),
		esp3.FormatPacketType(m.Type()),
		len(m.Data()),
		len(m.Optional()),
		status)
	if r, ok := m.(*esp3.RadioPacket); ok {
		if id, ok := r.SenderID(); ok {
			line += fmt.Sprintf(" sender=%08X", id)
		}
		if dbm, ok := r.DBm(); ok {
			line += fmt.Sprintf(" %ddBm", dbm)
		}
	}
	return line
}
