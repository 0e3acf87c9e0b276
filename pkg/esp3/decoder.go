// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import "time"

// ByteSource is the pull side of an inbound byte queue. Poll removes and
// returns the next byte, or false when the queue is currently empty.
type ByteSource interface {
	Poll() (byte, bool)
}

// Unreader is implemented by byte sources that can push bytes back to their
// front. The decoder uses it to retain partial frames when enabled.
type Unreader interface {
	Unread(b []byte)
}

// Outcome describes the result of a single decode attempt
type Outcome int

const (
	// OutcomeEmpty means the source ran dry before a sync byte was found
	OutcomeEmpty Outcome = iota
	// OutcomeIncomplete means the source ran dry in the middle of a frame
	OutcomeIncomplete
	// OutcomeHeaderRejected means the header checksum did not match
	OutcomeHeaderRejected
	// OutcomePacket means a packet was produced, possibly with valid=false
	OutcomePacket
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeHeaderRejected:
		return "header_rejected"
	case OutcomePacket:
		return "packet"
	default:
		return "unknown"
	}
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithStatistics makes the decoder record its outcomes in stats
func WithStatistics(stats *Statistics) DecoderOption {
	return func(d *Decoder) {
		d.stats = stats
	}
}

// WithPartialFrameRetention pushes the bytes of a truncated frame back to the
// source so the next attempt sees the whole frame again. It only has an
// effect when the source implements Unreader. Without it, the bytes of a
// truncated frame are dropped and decoding resumes at the next sync byte.
func WithPartialFrameRetention() DecoderOption {
	return func(d *Decoder) {
		d.retain = true
	}
}

// Decoder pulls ESP3 frames out of a ByteSource.
//
// A Decoder is not safe for concurrent use. The source may be filled by
// other goroutines while the decoder polls it.
type Decoder struct {
	src     ByteSource
	factory *Factory
	stats   *Statistics
	retain  bool
	frame   []byte
}

// NewDecoder creates a decoder reading from src. Packets are built by
// factory, or by a factory without extensions when factory is nil.
func NewDecoder(src ByteSource, factory *Factory, opts ...DecoderOption) *Decoder {
	if factory == nil {
		factory = NewFactory()
	}
	d := &Decoder{
		src:     src,
		factory: factory,
		frame:   make([]byte, 0, FrameOverhead+MaxDataLength+MaxOptionalLength),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode makes one decode attempt and returns the packet, or nil if the
// attempt produced none
func (d *Decoder) Decode() Message {
	m, _ := d.DecodeNext()
	return m
}

// DecodeNext makes one decode attempt and reports its outcome
func (d *Decoder) DecodeNext() (Message, Outcome) {
	if !d.sync() {
		return nil, OutcomeEmpty
	}

	d.frame = append(d.frame[:0], SyncByte)
	if !d.read(HeaderSize + 1) {
		return nil, d.truncated()
	}

	header := d.frame[1 : 1+HeaderSize]
	if HeaderCRC8(header) != d.frame[1+HeaderSize] {
		if d.stats != nil {
			d.stats.recordHeaderReject()
		}
		return nil, OutcomeHeaderRejected
	}

	// Not a big-endian combination: the high byte carries bits 2..9.
	dataLen := int(header[0])<<2 + int(header[1])
	optLen := int(header[2])
	kind := PacketType(header[3])

	if !d.read(dataLen + optLen + 1) {
		return nil, d.truncated()
	}

	start := 2 + HeaderSize
	// Packets outlive the frame buffer, which is reused on the next attempt
	data := cloneBytes(d.frame[start : start+dataLen])
	optional := cloneBytes(d.frame[start+dataLen : start+dataLen+optLen])
	valid := PayloadChecksum(data, optional) == d.frame[len(d.frame)-1]

	if d.stats != nil {
		d.stats.recordFrame(kind, valid)
	}
	return d.factory.Create(kind, data, optional, time.Now(), valid), OutcomePacket
}

// Drain decodes every complete frame currently available, handing each
// packet to fn, and returns the number of packets produced. Header rejections
// do not stop the drain; an empty or truncated source does.
func (d *Decoder) Drain(fn func(Message)) int {
	n := 0
	for {
		m, outcome := d.DecodeNext()
		switch outcome {
		case OutcomePacket:
			n++
			if fn != nil {
				fn(m)
			}
		case OutcomeHeaderRejected:
			continue
		default:
			return n
		}
	}
}

// sync discards bytes until a sync byte has been consumed
func (d *Decoder) sync() bool {
	skipped := 0
	defer func() {
		if d.stats != nil {
			d.stats.recordSkipped(skipped)
		}
	}()

	for {
		b, ok := d.src.Poll()
		if !ok {
			return false
		}
		if b == SyncByte {
			return true
		}
		skipped++
	}
}

// read appends n bytes from the source to the frame buffer
func (d *Decoder) read(n int) bool {
	for i := 0; i < n; i++ {
		b, ok := d.src.Poll()
		if !ok {
			return false
		}
		d.frame = append(d.frame, b)
	}
	return true
}

func (d *Decoder) truncated() Outcome {
	if d.retain {
		if u, ok := d.src.(Unreader); ok {
			u.Unread(cloneBytes(d.frame))
			return OutcomeIncomplete
		}
	}
	if d.stats != nil {
		d.stats.recordTruncated()
	}
	return OutcomeIncomplete
}

// sliceSource is a ByteSource over a byte slice
type sliceSource struct {
	buf []byte
}

func (s *sliceSource) Poll() (byte, bool) {
	if len(s.buf) == 0 {
		return 0, false
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b, true
}

// DecodeAll decodes every complete frame in b. A trailing partial frame is
// ignored.
func DecodeAll(b []byte, factory *Factory) []Message {
	d := NewDecoder(&sliceSource{buf: b}, factory)
	var out []Message
	d.Drain(func(m Message) {
		out = append(out, m)
	})
	return out
}
