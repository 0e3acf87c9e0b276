// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"errors"
	"fmt"
	"time"
)

// Construction errors
var (
	ErrDataTooLong     = errors.New("required data too long")
	ErrOptionalTooLong = errors.New("optional data too long")
	ErrInvalidType     = errors.New("invalid packet type")
)

// Message is implemented by the generic Packet and by every packet variant.
// Variants embed Packet, so packages outside esp3 can define their own
// variants for custom packet types by embedding it as well.
type Message interface {
	Type() PacketType
	Data() []byte
	Optional() []byte
	Timestamp() time.Time
	Valid() bool

	base() *Packet
}

// Packet is the generic ESP3 packet: a type code plus the required and
// optional data buffers. Packets are immutable after construction.
type Packet struct {
	kind      PacketType
	data      []byte
	optional  []byte
	timestamp time.Time
	valid     bool
}

// NewPacket creates an outbound packet. The lengths of both buffers must be
// representable in the frame header.
func NewPacket(kind PacketType, data, optional []byte) (*Packet, error) {
	if err := checkPacket(kind, data, optional); err != nil {
		return nil, err
	}
	p := newPacket(kind, cloneBytes(data), cloneBytes(optional), time.Now(), true)
	return &p, nil
}

// NewPacketAt creates a packet with an explicit timestamp and validity flag.
// Extension factories use it to build the embedded Packet of their variants.
func NewPacketAt(kind PacketType, data, optional []byte, timestamp time.Time, valid bool) Packet {
	return newPacket(kind, cloneBytes(data), cloneBytes(optional), timestamp, valid)
}

func newPacket(kind PacketType, data, optional []byte, timestamp time.Time, valid bool) Packet {
	if data == nil {
		data = []byte{}
	}
	if optional == nil {
		optional = []byte{}
	}
	return Packet{
		kind:      kind,
		data:      data,
		optional:  optional,
		timestamp: timestamp,
		valid:     valid,
	}
}

func checkPacket(kind PacketType, data, optional []byte) error {
	if kind < 0 || kind > 0xFF {
		return fmt.Errorf("%w: %d", ErrInvalidType, kind)
	}
	if len(data) > MaxDataLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrDataTooLong, len(data), MaxDataLength)
	}
	if len(optional) > MaxOptionalLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrOptionalTooLong, len(optional), MaxOptionalLength)
	}
	return nil
}

// Type returns the packet type code
func (p *Packet) Type() PacketType {
	return p.kind
}

// Data returns a copy of the required data
func (p *Packet) Data() []byte {
	return cloneBytes(p.data)
}

// Optional returns a copy of the optional data
func (p *Packet) Optional() []byte {
	return cloneBytes(p.optional)
}

// DataLength returns the length of the required data
func (p *Packet) DataLength() int {
	return len(p.data)
}

// OptionalLength returns the length of the optional data
func (p *Packet) OptionalLength() int {
	return len(p.optional)
}

// Timestamp returns the reception or construction time
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// Valid reports whether the payload checksum matched on decode. Locally
// constructed packets are always valid.
func (p *Packet) Valid() bool {
	return p.valid
}

func (p *Packet) base() *Packet {
	return p
}

// String returns a one-line summary of the packet
func (p *Packet) String() string {
	return fmt.Sprintf("%s data=%s opt=%s valid=%t",
		FormatPacketType(p.kind), FormatHex(p.data), FormatHex(p.optional), p.valid)
}

// byteAt returns the data byte at index i
func (p *Packet) byteAt(i int) (byte, bool) {
	if i < 0 || i >= len(p.data) {
		return 0, false
	}
	return p.data[i], true
}

// optAt returns the optional byte at index i
func (p *Packet) optAt(i int) (byte, bool) {
	if i < 0 || i >= len(p.optional) {
		return 0, false
	}
	return p.optional[i], true
}

// Equal reports whether two messages carry the same type and buffers.
// Timestamps and validity are not compared.
func Equal(a, b Message) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	pa, pb := a.base(), b.base()
	return pa.kind == pb.kind && bytesEqual(pa.data, pb.data) && bytesEqual(pa.optional, pb.optional)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
