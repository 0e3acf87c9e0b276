// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"errors"
	"fmt"
)

// ErrNilPacket is returned when encoding a nil packet
var ErrNilPacket = errors.New("nil packet")

// Encoder encodes ESP3 packets for transmission.
type Encoder struct{}

// NewEncoder creates a new ESP3 packet encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes a packet to wire format.
func (e *Encoder) Encode(m Message) ([]byte, error) {
	return EncodePacket(m)
}

// EncodeFrame creates a complete wire-formatted ESP3 frame.
// Returns the frame bytes ready for transmission, sync byte through payload checksum.
func EncodeFrame(kind PacketType, data, optional []byte) ([]byte, error) {
	if err := checkPacket(kind, data, optional); err != nil {
		return nil, fmt.Errorf("cannot encode frame: %w", err)
	}

	n := len(data)
	frame := make([]byte, 0, FrameOverhead+len(data)+len(optional))
	frame = append(frame, SyncByte)

	// The high length byte carries bits 8..9 shifted down by two, matching
	// the (hi << 2) + lo combination on decode.
	frame = append(frame,
		byte((n&0xFF00)>>2),
		byte(n&0xFF),
		byte(len(optional)&0xFF),
		byte(kind&0xFF),
	)
	frame = append(frame, HeaderCRC8(frame[1:1+HeaderSize]))

	frame = append(frame, data...)
	frame = append(frame, optional...)
	frame = append(frame, PayloadChecksum(data, optional))

	return frame, nil
}

// EncodePacket encodes a packet to wire format. The validity flag is not
// part of the frame.
func EncodePacket(m Message) ([]byte, error) {
	if isNilMessage(m) {
		return nil, ErrNilPacket
	}
	p := m.base()
	return EncodeFrame(p.kind, p.data, p.optional)
}

// MustEncodePacket encodes a packet to wire format.
// Panics on encoding error (use EncodePacket for error handling).
func MustEncodePacket(m Message) []byte {
	frame, err := EncodePacket(m)
	if err != nil {
		panic(fmt.Sprintf("esp3: encode error: %v", err))
	}
	return frame
}
