// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Command builder functions create common command packets ready for
// encoding. The module answers each with a RESPONSE packet.

// Response parsing errors
var (
	ErrNotResponse   = errors.New("not a response packet")
	ErrReturnCode    = errors.New("response return code not OK")
	ErrShortResponse = errors.New("response data too short")
)

func commonCommand(code byte, payload, optional []byte) *CommonCommandPacket {
	p := newPacket(TypeCommonCommand, append([]byte{code}, payload...), cloneBytes(optional), time.Now(), true)
	return &CommonCommandPacket{p}
}

// NewReadVersion creates a CO_RD_VERSION command (0x03).
// The response carries the application and API versions, chip ID and description.
func NewReadVersion() *CommonCommandPacket {
	return commonCommand(CoRdVersion, nil, nil)
}

// NewReadIDBase creates a CO_RD_IDBASE command (0x08).
func NewReadIDBase() *CommonCommandPacket {
	return commonCommand(CoRdIDBase, nil, nil)
}

// NewWriteReset creates a CO_WR_RESET command (0x02).
func NewWriteReset() *CommonCommandPacket {
	return commonCommand(CoWrReset, nil, nil)
}

// NewWriteSleep creates a CO_WR_SLEEP command (0x01).
// The period is given in units of 10 ms; only the low 24 bits are used.
func NewWriteSleep(period uint32) *CommonCommandPacket {
	return commonCommand(CoWrSleep, binary.BigEndian.AppendUint32(nil, period&0x00FFFFFF), nil)
}

// NewReadRepeater creates a CO_RD_REPEATER command (0x0A).
func NewReadRepeater() *CommonCommandPacket {
	return commonCommand(CoRdRepeater, nil, nil)
}

// NewWriteRepeater creates a CO_WR_REPEATER command (0x09).
// Level is 1 or 2; it is ignored when the repeater is disabled.
func NewWriteRepeater(enable bool, level byte) *CommonCommandPacket {
	if !enable {
		level = 0
	}
	return commonCommand(CoWrRepeater, []byte{boolByte(enable), level}, nil)
}

// NewReadLearnMode creates a CO_RD_LEARNMODE command (0x18).
func NewReadLearnMode() *CommonCommandPacket {
	return commonCommand(CoRdLearnMode, nil, nil)
}

// NewWriteLearnMode creates a CO_WR_LEARNMODE command (0x17).
// A timeout of 0 uses the module default of 60 seconds. Channel 0xFF selects
// all channels.
func NewWriteLearnMode(enable bool, timeoutMs uint32, channel byte) *CommonCommandPacket {
	payload := append([]byte{boolByte(enable)}, binary.BigEndian.AppendUint32(nil, timeoutMs)...)
	return commonCommand(CoWrLearnMode, payload, []byte{channel})
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// VersionInfo is the parsed answer to CO_RD_VERSION
type VersionInfo struct {
	AppVersion  [4]byte
	APIVersion  [4]byte
	ChipID      uint32
	ChipVersion uint32
	Description string
}

// String returns a compact representation of the version info
func (v VersionInfo) String() string {
	return fmt.Sprintf("app=%d.%d.%d.%d api=%d.%d.%d.%d chip=%08X/%08X %q",
		v.AppVersion[0], v.AppVersion[1], v.AppVersion[2], v.AppVersion[3],
		v.APIVersion[0], v.APIVersion[1], v.APIVersion[2], v.APIVersion[3],
		v.ChipID, v.ChipVersion, v.Description)
}

// versionResponseLength is return code + app 4 + api 4 + chip ID 4 + chip version 4 + description 16
const versionResponseLength = 33

// responseData checks that m is a successful response with at least n data
// bytes after the return code
func responseData(m Message, n int) ([]byte, error) {
	if isNilMessage(m) || m.Type() != TypeResponse {
		return nil, ErrNotResponse
	}
	data := m.base().data
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrShortResponse)
	}
	if data[0] != RetOK {
		return nil, fmt.Errorf("%w: %s", ErrReturnCode, FormatReturnCode(data[0]))
	}
	if len(data)-1 < n {
		return nil, fmt.Errorf("%w: %d bytes (need %d)", ErrShortResponse, len(data)-1, n)
	}
	return data[1:], nil
}

// ParseVersionResponse parses the response to a CO_RD_VERSION command
func ParseVersionResponse(m Message) (VersionInfo, error) {
	data, err := responseData(m, versionResponseLength-1)
	if err != nil {
		return VersionInfo{}, err
	}

	var v VersionInfo
	copy(v.AppVersion[:], data[0:4])
	copy(v.APIVersion[:], data[4:8])
	v.ChipID = binary.BigEndian.Uint32(data[8:12])
	v.ChipVersion = binary.BigEndian.Uint32(data[12:16])
	v.Description = strings.TrimRight(string(data[16:32]), "\x00 ")
	return v, nil
}

// IDBaseInfo is the parsed answer to CO_RD_IDBASE
type IDBaseInfo struct {
	BaseID uint32
	// RemainingWrites is only set when the module reports it in the optional data
	RemainingWrites    byte
	HasRemainingWrites bool
}

// ParseIDBaseResponse parses the response to a CO_RD_IDBASE command
func ParseIDBaseResponse(m Message) (IDBaseInfo, error) {
	data, err := responseData(m, 4)
	if err != nil {
		return IDBaseInfo{}, err
	}

	info := IDBaseInfo{BaseID: binary.BigEndian.Uint32(data[0:4])}
	if opt := m.base().optional; len(opt) > 0 {
		info.RemainingWrites = opt[0]
		info.HasRemainingWrites = true
	}
	return info, nil
}

// RepeaterInfo is the parsed answer to CO_RD_REPEATER
type RepeaterInfo struct {
	Enabled bool
	Level   byte
}

// ParseRepeaterResponse parses the response to a CO_RD_REPEATER command
func ParseRepeaterResponse(m Message) (RepeaterInfo, error) {
	data, err := responseData(m, 2)
	if err != nil {
		return RepeaterInfo{}, err
	}
	return RepeaterInfo{Enabled: data[0] != 0, Level: data[1]}, nil
}
