// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(m Message) string {
	if isNilMessage(m) {
		return "<nil>\n"
	}
	p := m.base()
	timestamp := p.timestamp.Format("15:04:05.000")

	validity := ""
	if !p.valid {
		validity = " INVALID"
	}

	result := fmt.Sprintf("[%s] %s (0x%02X) data=%d opt=%d%s\n",
		timestamp, FormatPacketType(p.kind), int(p.kind), len(p.data), len(p.optional), validity)
	result += formatDetails(m)
	result += fmt.Sprintf("  data: %s\n", FormatHex(p.data))
	if len(p.optional) > 0 {
		result += fmt.Sprintf("  opt:  %s\n", FormatHex(p.optional))
	}
	return result
}

func formatDetails(m Message) string {
	switch v := m.(type) {
	case *RadioSubTelPacket:
		result := formatRadio(&v.RadioPacket)
		for i, st := range v.SubTelegrams() {
			result += fmt.Sprintf("  subtel[%d]: tick=%d dBm=%d status=0x%02X\n", i, st.Tick, st.DBm, st.Status)
		}
		return result
	case *RadioPacket:
		return formatRadio(v)
	case *ResponsePacket:
		code, ok := v.ReturnCode()
		if !ok {
			return ""
		}
		return fmt.Sprintf("  return: %s\n", FormatReturnCode(code))
	case *EventPacket:
		code, ok := v.EventCode()
		if !ok {
			return ""
		}
		return fmt.Sprintf("  event: %s\n", FormatEventCode(code))
	case *CommonCommandPacket:
		code, ok := v.CommandCode()
		if !ok {
			return ""
		}
		return fmt.Sprintf("  command: %s\n", FormatCommonCommand(code))
	case *SmartAckCommandPacket:
		code, ok := v.CommandCode()
		if !ok {
			return ""
		}
		return fmt.Sprintf("  command: %s\n", FormatSmartAckCommand(code))
	case *RemoteManCommandPacket:
		fn, ok1 := v.FunctionNumber()
		mfr, ok2 := v.ManufacturerID()
		if !ok1 || !ok2 {
			return ""
		}
		result := fmt.Sprintf("  function=0x%03X manufacturer=0x%03X\n", fn, mfr)
		if dst, ok := v.DestinationID(); ok {
			src, _ := v.SourceID()
			result += fmt.Sprintf("  dst=%08X src=%08X\n", dst, src)
		}
		return result
	case *RadioAdvancedPacket:
		if dbm, ok := v.DBm(); ok {
			return fmt.Sprintf("  dBm=%d\n", dbm)
		}
	}
	return ""
}

func formatRadio(r *RadioPacket) string {
	rorg, ok := r.RORG()
	if !ok {
		return ""
	}
	result := fmt.Sprintf("  rorg: %s", FormatRORG(rorg))
	if sender, ok := r.SenderID(); ok {
		status, _ := r.Status()
		result += fmt.Sprintf(" sender=%08X status=0x%02X", sender, status)
	}
	if dbm, ok := r.DBm(); ok {
		result += fmt.Sprintf(" dBm=%d", dbm)
	}
	if dst, ok := r.DestinationID(); ok && dst != BroadcastID {
		result += fmt.Sprintf(" dst=%08X", dst)
	}
	return result + "\n"
}

// FormatPacketType returns the human-readable name for a packet type
func FormatPacketType(kind PacketType) string {
	switch kind {
	case TypeAny:
		return "ANY"
	case TypeRadio:
		return "RADIO_ERP1"
	case TypeResponse:
		return "RESPONSE"
	case TypeRadioSubTel:
		return "RADIO_SUB_TEL"
	case TypeEvent:
		return "EVENT"
	case TypeCommonCommand:
		return "COMMON_COMMAND"
	case TypeSmartAckCommand:
		return "SMART_ACK_COMMAND"
	case TypeRemoteManCommand:
		return "REMOTE_MAN_COMMAND"
	case TypeRadioAdvanced:
		return "RADIO_ERP2"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", int(kind))
	}
}

// ParsePacketType resolves a packet type name as produced by FormatPacketType,
// a short alias ("radio", "event", ...) or a numeric code such as "0x0A".
func ParsePacketType(s string) (PacketType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "ANY", "*":
		return TypeAny, nil
	case "RADIO", "RADIO_ERP1":
		return TypeRadio, nil
	case "RESPONSE":
		return TypeResponse, nil
	case "RADIO_SUB_TEL", "SUBTEL":
		return TypeRadioSubTel, nil
	case "EVENT":
		return TypeEvent, nil
	case "COMMON_COMMAND", "COMMON":
		return TypeCommonCommand, nil
	case "SMART_ACK_COMMAND", "SMART_ACK":
		return TypeSmartAckCommand, nil
	case "REMOTE_MAN_COMMAND", "REMOTE_MAN":
		return TypeRemoteManCommand, nil
	case "RADIO_ERP2", "RADIO_ADVANCED":
		return TypeRadioAdvanced, nil
	}

	code, err := strconv.ParseInt(strings.ToLower(name), 0, 16)
	if err != nil || code < 0 || code > 0xFF {
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return PacketType(code), nil
}

// FormatReturnCode returns the human-readable name for a response return code
func FormatReturnCode(code byte) string {
	switch code {
	case RetOK:
		return "RET_OK"
	case RetError:
		return "RET_ERROR"
	case RetNotSupported:
		return "RET_NOT_SUPPORTED"
	case RetWrongParam:
		return "RET_WRONG_PARAM"
	case RetOperationDenied:
		return "RET_OPERATION_DENIED"
	case RetLockSet:
		return "RET_LOCK_SET"
	case RetBufferTooSmall:
		return "RET_BUFFER_TO_SMALL"
	case RetNoFreeBuffer:
		return "RET_NO_FREE_BUFFER"
	default:
		return fmt.Sprintf("RET_0x%02X", code)
	}
}

// FormatEventCode returns the human-readable name for an event code
func FormatEventCode(code byte) string {
	switch code {
	case SAReclaimNotSuccessful:
		return "SA_RECLAIM_NOT_SUCCESSFUL"
	case SAConfirmLearn:
		return "SA_CONFIRM_LEARN"
	case SALearnAck:
		return "SA_LEARN_ACK"
	case COReady:
		return "CO_READY"
	case COEventSecureDevices:
		return "CO_EVENT_SECUREDEVICES"
	default:
		return fmt.Sprintf("EVENT_0x%02X", code)
	}
}

var commonCommandNames = map[byte]string{
	CoWrSleep:           "CO_WR_SLEEP",
	CoWrReset:           "CO_WR_RESET",
	CoRdVersion:         "CO_RD_VERSION",
	CoRdSysLog:          "CO_RD_SYS_LOG",
	CoWrSysLog:          "CO_WR_SYS_LOG",
	CoWrBIST:            "CO_WR_BIST",
	CoWrIDBase:          "CO_WR_IDBASE",
	CoRdIDBase:          "CO_RD_IDBASE",
	CoWrRepeater:        "CO_WR_REPEATER",
	CoRdRepeater:        "CO_RD_REPEATER",
	CoWrFilterAdd:       "CO_WR_FILTER_ADD",
	CoWrFilterDel:       "CO_WR_FILTER_DEL",
	CoWrFilterDelAll:    "CO_WR_FILTER_DEL_ALL",
	CoWrFilterEnable:    "CO_WR_FILTER_ENABLE",
	CoRdFilter:          "CO_RD_FILTER",
	CoWrWaitMaturity:    "CO_WR_WAIT_MATURITY",
	CoWrSubTel:          "CO_WR_SUBTEL",
	CoWrMem:             "CO_WR_MEM",
	CoRdMem:             "CO_RD_MEM",
	CoRdMemAddress:      "CO_RD_MEM_ADDRESS",
	CoRdSecurity:        "CO_RD_SECURITY",
	CoWrSecurity:        "CO_WR_SECURITY",
	CoWrLearnMode:       "CO_WR_LEARNMODE",
	CoRdLearnMode:       "CO_RD_LEARNMODE",
	CoWrSecureDeviceAdd: "CO_WR_SECUREDEVICE_ADD",
	CoWrSecureDeviceDel: "CO_WR_SECUREDEVICE_DEL",
	CoRdSecureDevices:   "CO_RD_SECUREDEVICES",
	CoWrMode:            "CO_WR_MODE",
}

// FormatCommonCommand returns the human-readable name for a common command code
func FormatCommonCommand(code byte) string {
	if name, ok := commonCommandNames[code]; ok {
		return name
	}
	return fmt.Sprintf("CO_0x%02X", code)
}

// FormatSmartAckCommand returns the human-readable name for a Smart Ack command code
func FormatSmartAckCommand(code byte) string {
	switch code {
	case SaWrLearnMode:
		return "SA_WR_LEARNMODE"
	case SaRdLearnMode:
		return "SA_RD_LEARNMODE"
	case SaWrLearnConfirm:
		return "SA_WR_LEARNCONFIRM"
	case SaWrClientLearnRq:
		return "SA_WR_CLIENTLEARNRQ"
	case SaWrReset:
		return "SA_WR_RESET"
	case SaRdLearnedClients:
		return "SA_RD_LEARNEDCLIENTS"
	case SaWrReclaims:
		return "SA_WR_RECLAIMS"
	case SaWrPostmaster:
		return "SA_WR_POSTMASTER"
	default:
		return fmt.Sprintf("SA_0x%02X", code)
	}
}

// FormatRORG returns the human-readable name for a radio telegram organisation
func FormatRORG(rorg byte) string {
	switch rorg {
	case RORGRPS:
		return "RPS"
	case RORG1BS:
		return "1BS"
	case RORG4BS:
		return "4BS"
	case RORGVLD:
		return "VLD"
	case RORGUTE:
		return "UTE"
	case RORGMSC:
		return "MSC"
	case RORGSEC:
		return "SEC"
	default:
		return fmt.Sprintf("0x%02X", rorg)
	}
}

// FormatHex formats bytes as space separated hex pairs
func FormatHex(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}
