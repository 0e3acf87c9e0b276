// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import "fmt"

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyChecksum AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyUnknownCode
	AnomalyInvalidValue
	AnomalyUnknownType
)

// String returns a short name for the anomaly type
func (a AnomalyType) String() string {
	switch a {
	case AnomalyChecksum:
		return "checksum"
	case AnomalyLengthMismatch:
		return "length"
	case AnomalyUnknownCode:
		return "unknown_code"
	case AnomalyInvalidValue:
		return "invalid_value"
	case AnomalyUnknownType:
		return "unknown_type"
	default:
		return fmt.Sprintf("anomaly_%d", int(a))
	}
}

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket checks a decoded packet against the layout of its type.
// Returns a slice of validation errors (empty if the packet looks sane).
// Packets with a bad payload checksum are reported and not checked further.
func ValidatePacket(m Message) []ValidationError {
	if !m.Valid() {
		return []ValidationError{{
			Type:    AnomalyChecksum,
			Message: fmt.Sprintf("%s payload checksum mismatch", FormatPacketType(m.Type())),
		}}
	}

	switch p := m.(type) {
	case *RadioPacket:
		return validateRadio(p)
	case *ResponsePacket:
		return validateResponse(p)
	case *EventPacket:
		return validateCode("EVENT", m.Data(), COEventSecureDevices)
	case *CommonCommandPacket:
		return validateCode("COMMON_COMMAND", m.Data(), CoWrMode)
	case *SmartAckCommandPacket:
		return validateCode("SMART_ACK_COMMAND", m.Data(), SaWrPostmaster)
	case *RadioSubTelPacket:
		return validateSubTel(p)
	case *RemoteManCommandPacket:
		return validateOptionalLength("REMOTE_MAN_COMMAND", m.Optional(), remoteManOptionalLength)
	case *RadioAdvancedPacket:
		return nil
	}

	return []ValidationError{{
		Type:    AnomalyUnknownType,
		Message: fmt.Sprintf("Unknown packet type 0x%02X", int(m.Type())),
		Details: map[string]interface{}{"type": int(m.Type())},
	}}
}

// rorgUserDataLength is the fixed user data length of each RORG, when it has one
var rorgUserDataLength = map[byte]int{
	RORGRPS: 1,
	RORG1BS: 1,
	RORG4BS: 4,
}

// validateRadio validates an ERP1 radio telegram
func validateRadio(p *RadioPacket) []ValidationError {
	// RORG + sender ID + status
	if len(p.data) < 6 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("RADIO data too short (%d bytes, expected at least 6)", len(p.data)),
			Details: map[string]interface{}{"length": len(p.data), "expected": 6},
		}}
	}

	errors := validateOptionalLength("RADIO", p.optional, radioOptionalLength)

	rorg := p.data[0]
	userData := len(p.data) - 6
	if want, ok := rorgUserDataLength[rorg]; ok && userData != want {
		errors = append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("RORG 0x%02X carries %d user data bytes (expected %d)", rorg, userData, want),
			Details: map[string]interface{}{"rorg": rorg, "length": userData, "expected": want},
		})
	}

	if sender, _ := p.SenderID(); sender == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: "RADIO sender ID is 00000000",
			Details: map[string]interface{}{"sender": sender},
		})
	}

	return errors
}

// validateResponse validates a RESPONSE packet
func validateResponse(p *ResponsePacket) []ValidationError {
	return validateCode("RESPONSE", p.data, RetNoFreeBuffer)
}

// validateSubTel validates the sub-telegram list of a RADIO_SUB_TEL packet
func validateSubTel(p *RadioSubTelPacket) []ValidationError {
	if len(p.optional) == 0 {
		return nil
	}
	if len(p.optional) < subTelOptionalFixed || (len(p.optional)-subTelOptionalFixed)%subTelEntrySize != 0 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("RADIO_SUB_TEL optional data has %d bytes (expected %d + 3n)", len(p.optional), subTelOptionalFixed),
			Details: map[string]interface{}{"length": len(p.optional), "expected": subTelOptionalFixed},
		}}
	}
	return nil
}

// validateCode checks that the first data byte is a known code, 0 through max
// for return codes and 1 through max for everything else
func validateCode(name string, data []byte, max byte) []ValidationError {
	if len(data) == 0 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s has no code byte", name),
			Details: map[string]interface{}{"length": 0, "expected": 1},
		}}
	}

	min := byte(1)
	if name == "RESPONSE" {
		min = 0
	}
	if code := data[0]; code < min || code > max {
		return []ValidationError{{
			Type:    AnomalyUnknownCode,
			Message: fmt.Sprintf("%s code 0x%02X unknown (valid 0x%02X-0x%02X)", name, code, min, max),
			Details: map[string]interface{}{"code": code, "max": max},
		}}
	}
	return nil
}

// validateOptionalLength accepts no optional data or exactly want bytes
func validateOptionalLength(name string, optional []byte, want int) []ValidationError {
	if len(optional) == 0 || len(optional) == want {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyLengthMismatch,
		Message: fmt.Sprintf("%s optional data has %d bytes (expected %d)", name, len(optional), want),
		Details: map[string]interface{}{"length": len(optional), "expected": want},
	}}
}
