// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"bytes"
	"errors"
	"testing"
)

func TestCommandBuilders(t *testing.T) {
	tests := []struct {
		name     string
		packet   *CommonCommandPacket
		wantCode byte
		wantData []byte
		wantOpt  []byte
	}{
		{"read version", NewReadVersion(), CoRdVersion, nil, nil},
		{"read id base", NewReadIDBase(), CoRdIDBase, nil, nil},
		{"reset", NewWriteReset(), CoWrReset, nil, nil},
		{"sleep", NewWriteSleep(0x01000064), CoWrSleep, []byte{0x00, 0x00, 0x00, 0x64}, nil},
		{"read repeater", NewReadRepeater(), CoRdRepeater, nil, nil},
		{"repeater level 2", NewWriteRepeater(true, 2), CoWrRepeater, []byte{0x01, 0x02}, nil},
		{"repeater off", NewWriteRepeater(false, 2), CoWrRepeater, []byte{0x00, 0x00}, nil},
		{"read learn mode", NewReadLearnMode(), CoRdLearnMode, nil, nil},
		{"learn mode", NewWriteLearnMode(true, 30000, 0xFF), CoWrLearnMode, []byte{0x01, 0x00, 0x00, 0x75, 0x30}, []byte{0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.packet.Type() != TypeCommonCommand {
				t.Errorf("Type() = %v, want COMMON_COMMAND", tt.packet.Type())
			}
			code, ok := tt.packet.CommandCode()
			if !ok || code != tt.wantCode {
				t.Errorf("CommandCode() = 0x%02X, want 0x%02X", code, tt.wantCode)
			}
			data, _ := tt.packet.CommandData()
			if !bytes.Equal(data, tt.wantData) && !(len(data) == 0 && len(tt.wantData) == 0) {
				t.Errorf("CommandData() = % X, want % X", data, tt.wantData)
			}
			if !bytes.Equal(tt.packet.Optional(), tt.wantOpt) && !(len(tt.packet.Optional()) == 0 && len(tt.wantOpt) == 0) {
				t.Errorf("Optional() = % X, want % X", tt.packet.Optional(), tt.wantOpt)
			}
		})
	}
}

func versionResponse() *ResponsePacket {
	data := []byte{RetOK,
		2, 11, 1, 0, // app
		2, 6, 3, 0, // api
		0x01, 0x85, 0xAB, 0xCD, // chip ID
		0x45, 0x4F, 0x01, 0x03, // chip version
	}
	desc := make([]byte, 16)
	copy(desc, "GATEWAYCTRL")
	data = append(data, desc...)
	p, _ := NewResponsePacket(data, nil)
	return p
}

func TestParseVersionResponse(t *testing.T) {
	v, err := ParseVersionResponse(versionResponse())
	if err != nil {
		t.Fatalf("ParseVersionResponse failed: %v", err)
	}
	if v.AppVersion != [4]byte{2, 11, 1, 0} {
		t.Errorf("AppVersion = %v", v.AppVersion)
	}
	if v.APIVersion != [4]byte{2, 6, 3, 0} {
		t.Errorf("APIVersion = %v", v.APIVersion)
	}
	if v.ChipID != 0x0185ABCD {
		t.Errorf("ChipID = %08X", v.ChipID)
	}
	if v.ChipVersion != 0x454F0103 {
		t.Errorf("ChipVersion = %08X", v.ChipVersion)
	}
	if v.Description != "GATEWAYCTRL" {
		t.Errorf("Description = %q", v.Description)
	}
	if v.String() == "" {
		t.Error("String() should not be empty")
	}
}

func TestParseVersionResponse_Errors(t *testing.T) {
	short, _ := NewResponse(RetOK, []byte{0x01, 0x02})
	failed, _ := NewResponse(RetNotSupported, nil)
	event, _ := NewEvent(COReady, nil)

	tests := []struct {
		name    string
		msg     Message
		wantErr error
	}{
		{"short", short, ErrShortResponse},
		{"return code", failed, ErrReturnCode},
		{"not a response", event, ErrNotResponse},
		{"nil", nil, ErrNotResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVersionResponse(tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseIDBaseResponse(t *testing.T) {
	withCycles, _ := NewResponsePacket([]byte{RetOK, 0xFF, 0x80, 0x00, 0x00}, []byte{0x0A})
	info, err := ParseIDBaseResponse(withCycles)
	if err != nil {
		t.Fatal(err)
	}
	if info.BaseID != 0xFF800000 {
		t.Errorf("BaseID = %08X", info.BaseID)
	}
	if !info.HasRemainingWrites || info.RemainingWrites != 10 {
		t.Errorf("RemainingWrites = %d (%v)", info.RemainingWrites, info.HasRemainingWrites)
	}

	plain, _ := NewResponse(RetOK, []byte{0xFF, 0x80, 0x00, 0x00})
	info, err = ParseIDBaseResponse(plain)
	if err != nil {
		t.Fatal(err)
	}
	if info.HasRemainingWrites {
		t.Error("HasRemainingWrites should be false without optional data")
	}
}

func TestParseRepeaterResponse(t *testing.T) {
	resp, _ := NewResponse(RetOK, []byte{0x01, 0x01})
	info, err := ParseRepeaterResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Enabled || info.Level != 1 {
		t.Errorf("info = %+v", info)
	}
}

func TestParseVersionResponse_AfterDecode(t *testing.T) {
	frame := MustEncodePacket(versionResponse())
	msgs := DecodeAll(frame, nil)
	if len(msgs) != 1 {
		t.Fatalf("decoded %d packets", len(msgs))
	}
	if _, err := ParseVersionResponse(msgs[0]); err != nil {
		t.Errorf("decoded response should parse: %v", err)
	}
}
