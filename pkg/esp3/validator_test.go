// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"testing"
	"time"
)

func TestValidatePacket(t *testing.T) {
	now := time.Now()
	f := NewFactory()

	rps, err := NewRadioTelegram(RORGRPS, []byte{0x50}, 0x01020304, 0x30)
	if err != nil {
		t.Fatalf("NewRadioTelegram: %v", err)
	}

	tests := []struct {
		name string
		msg  Message
		want []AnomalyType
	}{
		{"rps telegram", rps, nil},
		{"decoded frame", f.Create(TypeRadio, radioFrame[6:13], radioFrame[13:20], now, true), nil},
		{"bad checksum", f.Create(TypeRadio, radioFrame[6:13], radioFrame[13:20], now, false), []AnomalyType{AnomalyChecksum}},
		{"radio too short", f.Create(TypeRadio, []byte{0xF6, 0x50}, nil, now, true), []AnomalyType{AnomalyLengthMismatch}},
		{"4bs with one byte", f.Create(TypeRadio, []byte{0xA5, 0x01, 1, 2, 3, 4, 0}, nil, now, true), []AnomalyType{AnomalyLengthMismatch}},
		{"radio optional length", f.Create(TypeRadio, radioFrame[6:13], []byte{3, 0xFF}, now, true), []AnomalyType{AnomalyLengthMismatch}},
		{"zero sender", f.Create(TypeRadio, []byte{0xF6, 0x50, 0, 0, 0, 0, 0x30}, nil, now, true), []AnomalyType{AnomalyInvalidValue}},
		{"vld any length", f.Create(TypeRadio, []byte{0xD2, 1, 2, 3, 0xAA, 0xBB, 0xCC, 0xDD, 0}, nil, now, true), nil},
		{"response ok", f.Create(TypeResponse, []byte{RetOK}, nil, now, true), nil},
		{"response unknown code", f.Create(TypeResponse, []byte{0x42}, nil, now, true), []AnomalyType{AnomalyUnknownCode}},
		{"empty response", f.Create(TypeResponse, nil, nil, now, true), []AnomalyType{AnomalyLengthMismatch}},
		{"event ready", f.Create(TypeEvent, []byte{COReady, 0x00}, nil, now, true), nil},
		{"event zero", f.Create(TypeEvent, []byte{0x00}, nil, now, true), []AnomalyType{AnomalyUnknownCode}},
		{"common command", f.Create(TypeCommonCommand, []byte{CoRdVersion}, nil, now, true), nil},
		{"common command unknown", f.Create(TypeCommonCommand, []byte{0x7F}, nil, now, true), []AnomalyType{AnomalyUnknownCode}},
		{"smart ack unknown", f.Create(TypeSmartAckCommand, []byte{0x09}, nil, now, true), []AnomalyType{AnomalyUnknownCode}},
		{"sub tel entries", f.Create(TypeRadioSubTel, radioFrame[6:13], []byte{1, 0xFF, 0xFF, 0xFF, 0xFF, 0x2D, 0, 0x00, 0x10, 0, 0x2D, 0}, now, true), nil},
		{"sub tel ragged", f.Create(TypeRadioSubTel, radioFrame[6:13], []byte{1, 0xFF, 0xFF, 0xFF, 0xFF, 0x2D, 0, 0x00, 0x10, 0}, now, true), []AnomalyType{AnomalyLengthMismatch}},
		{"unknown type", f.Create(PacketType(0x42), []byte{1}, nil, now, true), []AnomalyType{AnomalyUnknownType}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePacket(tt.msg)
			if len(got) != len(tt.want) {
				t.Fatalf("ValidatePacket = %v, want %d anomalies", got, len(tt.want))
			}
			for i, e := range got {
				if e.Type != tt.want[i] {
					t.Errorf("anomaly %d = %s (%s), want %s", i, e.Type, e.Message, tt.want[i])
				}
			}
		})
	}
}
