// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CaptureRecord is one packet in a capture file. Capture files are CBOR
// sequences of records with integer keys.
type CaptureRecord struct {
	Timestamp int64  `cbor:"1,keyasint"` // Unix nanoseconds
	Type      int    `cbor:"2,keyasint"`
	Data      []byte `cbor:"3,keyasint"`
	Optional  []byte `cbor:"4,keyasint,omitempty"`
	Valid     bool   `cbor:"5,keyasint"`
}

// NewCaptureRecord creates a record holding the contents of m
func NewCaptureRecord(m Message) CaptureRecord {
	p := m.base()
	return CaptureRecord{
		Timestamp: p.timestamp.UnixNano(),
		Type:      int(p.kind),
		Data:      cloneBytes(p.data),
		Optional:  cloneBytes(p.optional),
		Valid:     p.valid,
	}
}

// Time returns the record timestamp
func (r CaptureRecord) Time() time.Time {
	return time.Unix(0, r.Timestamp)
}

// Message rebuilds the packet through factory (a factory without extensions
// when nil), preserving the recorded timestamp and validity
func (r CaptureRecord) Message(factory *Factory) (Message, error) {
	if r.Type < 0 || r.Type > 0xFF {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, r.Type)
	}
	if factory == nil {
		factory = NewFactory()
	}
	return factory.Create(PacketType(r.Type), r.Data, r.Optional, r.Time(), r.Valid), nil
}

// CaptureWriter appends packets to a capture stream
type CaptureWriter struct {
	enc   *cbor.Encoder
	count int
}

// NewCaptureWriter creates a capture writer on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// Write appends one packet
func (w *CaptureWriter) Write(m Message) error {
	if isNilMessage(m) {
		return ErrNilPacket
	}
	return w.WriteRecord(NewCaptureRecord(m))
}

// WriteRecord appends one record
func (w *CaptureWriter) WriteRecord(r CaptureRecord) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written
func (w *CaptureWriter) Count() int {
	return w.count
}

// CaptureReader reads records from a capture stream
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a capture reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return CaptureRecord{}, io.EOF
		}
		return CaptureRecord{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

// ReadAll reads every remaining record
func (r *CaptureReader) ReadAll() ([]CaptureRecord, error) {
	var out []CaptureRecord
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
