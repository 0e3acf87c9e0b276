// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"strings"
	"testing"
)

func TestFormatPacket(t *testing.T) {
	msgs := DecodeAll(radioFrame, nil)
	if len(msgs) != 1 {
		t.Fatal("expected one packet")
	}
	out := FormatPacket(msgs[0])

	for _, want := range []string{"RADIO_ERP1", "rorg: RPS", "sender=01020304", "dBm=-45", "data: F6 50 01 02 03 04 30"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatPacket output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "INVALID") {
		t.Error("valid packet should not be marked INVALID")
	}
}

func TestFormatPacket_Invalid(t *testing.T) {
	frame := append([]byte{}, radioFrame...)
	frame[len(frame)-1] ^= 0x01
	out := FormatPacket(DecodeAll(frame, nil)[0])
	if !strings.Contains(out, "INVALID") {
		t.Errorf("invalid packet should be marked:\n%s", out)
	}
}

func TestFormatPacket_Variants(t *testing.T) {
	resp, _ := NewResponse(RetWrongParam, nil)
	event, _ := NewEvent(COReady, []byte{0x01})
	smart, _ := NewSmartAckCommand(SaWrPostmaster, []byte{0x05})

	tests := []struct {
		msg  Message
		want string
	}{
		{resp, "RET_WRONG_PARAM"},
		{event, "CO_READY"},
		{NewReadVersion(), "CO_RD_VERSION"},
		{smart, "SA_WR_POSTMASTER"},
	}
	for _, tt := range tests {
		if out := FormatPacket(tt.msg); !strings.Contains(out, tt.want) {
			t.Errorf("FormatPacket output missing %q:\n%s", tt.want, out)
		}
	}
	if FormatPacket(nil) != "<nil>\n" {
		t.Error("FormatPacket(nil) should not panic")
	}
}

func TestParsePacketType(t *testing.T) {
	tests := []struct {
		in      string
		want    PacketType
		wantErr bool
	}{
		{"radio", TypeRadio, false},
		{"RADIO_ERP2", TypeRadioAdvanced, false},
		{"any", TypeAny, false},
		{"event", TypeEvent, false},
		{"0x0A", TypeRadioAdvanced, false},
		{"128", PacketType(128), false},
		{"0x100", 0, true},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePacketType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParsePacketType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	// Names produced by the formatter parse back
	for _, k := range []PacketType{TypeRadio, TypeResponse, TypeRadioSubTel, TypeEvent,
		TypeCommonCommand, TypeSmartAckCommand, TypeRemoteManCommand, TypeRadioAdvanced} {
		if got, err := ParsePacketType(FormatPacketType(k)); err != nil || got != k {
			t.Errorf("ParsePacketType(FormatPacketType(%d)) = %v, %v", k, got, err)
		}
	}
}

func TestFormatHex(t *testing.T) {
	if FormatHex(nil) != "-" {
		t.Errorf("FormatHex(nil) = %q", FormatHex(nil))
	}
	if FormatHex([]byte{0x55, 0x0A}) != "55 0A" {
		t.Errorf("FormatHex = %q", FormatHex([]byte{0x55, 0x0A}))
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Counters(t *testing.T) {
	stats := NewStatistics()

	bad := append([]byte{}, radioFrame...)
	bad[len(bad)-1] ^= 0x01
	rejected := append([]byte{}, radioFrame...)
	rejected[2] ^= 0x01

	stream := append([]byte{0x00, 0x01}, radioFrame...)
	stream = append(stream, bad...)
	stream = append(stream, rejected...)
	stream = append(stream, radioFrame[:8]...)

	d := NewDecoder(&sliceSource{buf: stream}, nil, WithStatistics(stats))
	if n := d.Drain(nil); n != 2 {
		t.Fatalf("Drain produced %d packets, want 2", n)
	}

	snap := stats.Snapshot()
	if snap.TotalFrames != 2 || snap.ValidFrames != 1 || snap.PayloadErrors != 1 {
		t.Errorf("frames total=%d valid=%d payload errors=%d", snap.TotalFrames, snap.ValidFrames, snap.PayloadErrors)
	}
	if snap.HeaderRejects != 1 {
		t.Errorf("HeaderRejects = %d, want 1", snap.HeaderRejects)
	}
	if snap.TruncatedFrames != 1 {
		t.Errorf("TruncatedFrames = %d, want 1", snap.TruncatedFrames)
	}
	if snap.ByType[TypeRadio] != 2 {
		t.Errorf("ByType[RADIO] = %d, want 2", snap.ByType[TypeRadio])
	}
	if snap.Errors() != 3 {
		t.Errorf("Errors() = %d, want 3", snap.Errors())
	}

	out := stats.String()
	for _, want := range []string{"Total Frames:", "Header Rejects:", "RADIO_ERP1:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	stats.Reset()
	if snap := stats.Snapshot(); snap.TotalFrames != 0 || len(snap.ByType) != 0 {
		t.Error("Reset() should clear counters")
	}
}

func TestStatistics_SnapshotIsCopy(t *testing.T) {
	stats := NewStatistics()
	stats.recordFrame(TypeEvent, true)
	snap := stats.Snapshot()
	snap.ByType[TypeEvent] = 100
	if stats.Snapshot().ByType[TypeEvent] != 1 {
		t.Error("Snapshot() should not alias internal state")
	}
}
