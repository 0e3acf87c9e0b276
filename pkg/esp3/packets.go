// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"encoding/binary"
	"time"
)

// BroadcastID is the destination ID used for broadcast radio telegrams
const BroadcastID uint32 = 0xFFFFFFFF

// SubTelSend is the sub-telegram count used when sending radio telegrams
const SubTelSend = 3

func uint32At(b []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[off : off+4]), true
}

func uint16At(b []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(b) {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[off : off+2]), true
}

func tail(b []byte, from int) ([]byte, bool) {
	if from > len(b) {
		return nil, false
	}
	return cloneBytes(b[from:]), true
}

// ============================================================
// Radio (type 0x01)
// ============================================================

// RadioPacket is an ERP1 radio telegram.
//
// Data:     [RORG][user data...][sender ID 4][status]
// Optional: [sub-telegram count][destination ID 4][dBm][security level]
type RadioPacket struct {
	Packet
}

// NewRadioPacket wraps raw radio data and optional buffers
func NewRadioPacket(data, optional []byte) (*RadioPacket, error) {
	if err := checkPacket(TypeRadio, data, optional); err != nil {
		return nil, err
	}
	return &RadioPacket{newPacket(TypeRadio, cloneBytes(data), cloneBytes(optional), time.Now(), true)}, nil
}

// NewRadioTelegram builds an outbound broadcast radio telegram from its fields
func NewRadioTelegram(rorg byte, userData []byte, senderID uint32, status byte) (*RadioPacket, error) {
	data := make([]byte, 0, len(userData)+6)
	data = append(data, rorg)
	data = append(data, userData...)
	data = binary.BigEndian.AppendUint32(data, senderID)
	data = append(data, status)
	return NewRadioPacket(data, radioSendOptional(BroadcastID))
}

// NewAddressedRadioTelegram builds an outbound radio telegram for a single destination
func NewAddressedRadioTelegram(rorg byte, userData []byte, senderID, destinationID uint32, status byte) (*RadioPacket, error) {
	p, err := NewRadioTelegram(rorg, userData, senderID, status)
	if err != nil {
		return nil, err
	}
	p.optional = radioSendOptional(destinationID)
	return p, nil
}

func radioSendOptional(destinationID uint32) []byte {
	opt := make([]byte, 0, radioOptionalLength)
	opt = append(opt, SubTelSend)
	opt = binary.BigEndian.AppendUint32(opt, destinationID)
	opt = append(opt, 0xFF, 0x00) // dBm unused on send, no security
	return opt
}

// RORG returns the radio telegram organisation byte
func (p *RadioPacket) RORG() (byte, bool) {
	return p.byteAt(0)
}

// UserData returns the telegram payload between RORG and sender ID
func (p *RadioPacket) UserData() ([]byte, bool) {
	if len(p.data) < 6 {
		return nil, false
	}
	return cloneBytes(p.data[1 : len(p.data)-5]), true
}

// SenderID returns the 32-bit ID of the sending module
func (p *RadioPacket) SenderID() (uint32, bool) {
	if len(p.data) < 6 {
		return 0, false
	}
	return uint32At(p.data, len(p.data)-5)
}

// Status returns the telegram status byte
func (p *RadioPacket) Status() (byte, bool) {
	if len(p.data) < 6 {
		return 0, false
	}
	return p.data[len(p.data)-1], true
}

// SubTelNum returns the number of sub-telegrams
func (p *RadioPacket) SubTelNum() (byte, bool) {
	return p.optAt(0)
}

// DestinationID returns the destination ID, BroadcastID for broadcasts
func (p *RadioPacket) DestinationID() (uint32, bool) {
	return uint32At(p.optional, 1)
}

// DBm returns the best RSSI of all received sub-telegrams in dBm
func (p *RadioPacket) DBm() (int, bool) {
	b, ok := p.optAt(5)
	if !ok {
		return 0, false
	}
	return -int(b), true
}

// SecurityLevel returns the security level byte
func (p *RadioPacket) SecurityLevel() (byte, bool) {
	return p.optAt(6)
}

// ============================================================
// Response (type 0x02)
// ============================================================

// ResponsePacket answers a command. Data: [return code][response data...]
type ResponsePacket struct {
	Packet
}

// NewResponsePacket wraps raw response buffers
func NewResponsePacket(data, optional []byte) (*ResponsePacket, error) {
	if err := checkPacket(TypeResponse, data, optional); err != nil {
		return nil, err
	}
	return &ResponsePacket{newPacket(TypeResponse, cloneBytes(data), cloneBytes(optional), time.Now(), true)}, nil
}

// NewResponse builds a response with the given return code and data
func NewResponse(code byte, payload []byte) (*ResponsePacket, error) {
	return NewResponsePacket(append([]byte{code}, payload...), nil)
}

// ReturnCode returns the response return code
func (p *ResponsePacket) ReturnCode() (byte, bool) {
	return p.byteAt(0)
}

// OK reports whether the return code is RetOK
func (p *ResponsePacket) OK() bool {
	code, ok := p.ReturnCode()
	return ok && code == RetOK
}

// ResponseData returns the data following the return code
func (p *ResponsePacket) ResponseData() ([]byte, bool) {
	return tail(p.data, 1)
}

// ============================================================
// Radio sub-telegram (type 0x03)
// ============================================================

// SubTelegram is one received sub-telegram of a RadioSubTelPacket
type SubTelegram struct {
	Tick   byte
	DBm    int
	Status byte
}

// RadioSubTelPacket is a radio telegram with per-sub-telegram diagnostics.
//
// Optional: [sub-telegram count][destination ID 4][dBm][security level]
// [timestamp 2] followed by [tick][dBm][status] for each sub-telegram.
type RadioSubTelPacket struct {
	RadioPacket
}

// NewRadioSubTelPacket wraps raw radio sub-telegram buffers
func NewRadioSubTelPacket(data, optional []byte) (*RadioSubTelPacket, error) {
	if err := checkPacket(TypeRadioSubTel, data, optional); err != nil {
		return nil, err
	}
	return &RadioSubTelPacket{RadioPacket{newPacket(TypeRadioSubTel, cloneBytes(data), cloneBytes(optional), time.Now(), true)}}, nil
}

// SubTelTimestamp returns the 16-bit receive timestamp of the first sub-telegram
func (p *RadioSubTelPacket) SubTelTimestamp() (uint16, bool) {
	return uint16At(p.optional, radioOptionalLength)
}

// SubTelegrams returns the complete sub-telegram entries. A trailing partial
// entry is ignored.
func (p *RadioSubTelPacket) SubTelegrams() []SubTelegram {
	if len(p.optional) <= subTelOptionalFixed {
		return nil
	}
	entries := p.optional[subTelOptionalFixed:]
	out := make([]SubTelegram, 0, len(entries)/subTelEntrySize)
	for i := 0; i+subTelEntrySize <= len(entries); i += subTelEntrySize {
		out = append(out, SubTelegram{
			Tick:   entries[i],
			DBm:    -int(entries[i+1]),
			Status: entries[i+2],
		})
	}
	return out
}

// ============================================================
// Event (type 0x04)
// ============================================================

// EventPacket is an unsolicited module event. Data: [event code][event data...]
type EventPacket struct {
	Packet
}

// NewEventPacket wraps raw event buffers
func NewEventPacket(data, optional []byte) (*EventPacket, error) {
	if err := checkPacket(TypeEvent, data, optional); err != nil {
		return nil, err
	}
	return &EventPacket{newPacket(TypeEvent, cloneBytes(data), cloneBytes(optional), time.Now(), true)}, nil
}

// NewEvent builds an event with the given code and data
func NewEvent(code byte, payload []byte) (*EventPacket, error) {
	return NewEventPacket(append([]byte{code}, payload...), nil)
}

// EventCode returns the event code
func (p *EventPacket) EventCode() (byte, bool) {
	return p.byteAt(0)
}

// EventData returns the data following the event code
func (p *EventPacket) EventData() ([]byte, bool) {
	return tail(p.data, 1)
}

// ============================================================
// Common command (type 0x05)
// ============================================================

// CommonCommandPacket is a command to the module. Data: [command code][command data...]
type CommonCommandPacket struct {
	Packet
}

// NewCommonCommandPacket wraps raw common command buffers
func NewCommonCommandPacket(data, optional []byte) (*CommonCommandPacket, error) {
	if err := checkPacket(TypeCommonCommand, data, optional); err != nil {
		return nil, err
	}
	return &CommonCommandPacket{newPacket(TypeCommonCommand, cloneBytes(data), cloneBytes(optional), time.Now(), true)}, nil
}

// NewCommonCommand builds a common command with the given code and data
func NewCommonCommand(code byte, payload, optional []byte) (*CommonCommandPacket, error) {
	return NewCommonCommandPacket(append([]byte{code}, payload...), optional)
}

// CommandCode returns the command code
func (p *CommonCommandPacket) CommandCode() (byte, bool) {
	return p.byteAt(0)
}

// CommandData returns the data following the command code
func (p *CommonCommandPacket) CommandData() ([]byte, bool) {
	return tail(p.data, 1)
}

// ============================================================
// Smart Ack command (type 0x06)
// ============================================================

// SmartAckCommandPacket configures Smart Ack. Data: [command code][command data...]
type SmartAckCommandPacket struct {
	Packet
}

// NewSmartAckCommandPacket wraps raw Smart Ack command buffers
func NewSmartAckCommandPacket(data, optional []byte) (*SmartAckCommandPacket, error) {
	if err := checkPacket(TypeSmartAckCommand, data, optional); err != nil {
		return nil, err
	}
	return &SmartAckCommandPacket{newPacket(TypeSmartAckCommand, cloneBytes(data), cloneBytes(optional), time.Now(), true)}, nil
}

// NewSmartAckCommand builds a Smart Ack command with the given code and data
func NewSmartAckCommand(code byte, payload []byte) (*SmartAckCommandPacket, error) {
	return NewSmartAckCommandPacket(append([]byte{code}, payload...), nil)
}

// CommandCode returns the Smart Ack command code
func (p *SmartAckCommandPacket) CommandCode() (byte, bool) {
	return p.byteAt(0)
}

// CommandData returns the data following the command code
func (p *SmartAckCommandPacket) CommandData() ([]byte, bool) {
	return tail(p.data, 1)
}

// ============================================================
// Remote management command (type 0x07)
// ============================================================

// RemoteManCommandPacket carries a remote management message.
//
// Data:     [function number 2][manufacturer ID 2][message data...]
// Optional: [destination ID 4][source ID 4][dBm][send with delay]
type RemoteManCommandPacket struct {
	Packet
}

// NewRemoteManCommandPacket wraps raw remote management buffers
func NewRemoteManCommandPacket(data, optional []byte) (*RemoteManCommandPacket, error) {
	if err := checkPacket(TypeRemoteManCommand, data, optional); err != nil {
		return nil, err
	}
	return &RemoteManCommandPacket{newPacket(TypeRemoteManCommand, cloneBytes(data), cloneBytes(optional), time.Now(), true)}, nil
}

// NewRemoteManCommand builds a remote management command addressed to destinationID
func NewRemoteManCommand(function, manufacturer uint16, message []byte, destinationID, sourceID uint32, sendWithDelay bool) (*RemoteManCommandPacket, error) {
	data := make([]byte, 0, 4+len(message))
	data = binary.BigEndian.AppendUint16(data, function)
	data = binary.BigEndian.AppendUint16(data, manufacturer)
	data = append(data, message...)

	opt := make([]byte, 0, remoteManOptionalLength)
	opt = binary.BigEndian.AppendUint32(opt, destinationID)
	opt = binary.BigEndian.AppendUint32(opt, sourceID)
	opt = append(opt, 0xFF)
	if sendWithDelay {
		opt = append(opt, 0x01)
	} else {
		opt = append(opt, 0x00)
	}
	return NewRemoteManCommandPacket(data, opt)
}

// FunctionNumber returns the remote management function number
func (p *RemoteManCommandPacket) FunctionNumber() (uint16, bool) {
	return uint16At(p.data, 0)
}

// ManufacturerID returns the manufacturer ID
func (p *RemoteManCommandPacket) ManufacturerID() (uint16, bool) {
	return uint16At(p.data, 2)
}

// MessageData returns the message following the function and manufacturer fields
func (p *RemoteManCommandPacket) MessageData() ([]byte, bool) {
	return tail(p.data, 4)
}

// DestinationID returns the destination ID
func (p *RemoteManCommandPacket) DestinationID() (uint32, bool) {
	return uint32At(p.optional, 0)
}

// SourceID returns the source ID
func (p *RemoteManCommandPacket) SourceID() (uint32, bool) {
	return uint32At(p.optional, 4)
}

// DBm returns the received signal strength in dBm
func (p *RemoteManCommandPacket) DBm() (int, bool) {
	b, ok := p.optAt(8)
	if !ok {
		return 0, false
	}
	return -int(b), true
}

// SendWithDelay reports whether the message is sent with a random delay
func (p *RemoteManCommandPacket) SendWithDelay() (bool, bool) {
	b, ok := p.optAt(9)
	return b != 0, ok
}

// ============================================================
// Radio advanced (type 0x0A)
// ============================================================

// RadioAdvancedPacket is an ERP2 radio telegram. Optional: [sub-telegram count][dBm]
type RadioAdvancedPacket struct {
	Packet
}

// NewRadioAdvancedPacket wraps raw advanced radio buffers
func NewRadioAdvancedPacket(data, optional []byte) (*RadioAdvancedPacket, error) {
	if err := checkPacket(TypeRadioAdvanced, data, optional); err != nil {
		return nil, err
	}
	return &RadioAdvancedPacket{newPacket(TypeRadioAdvanced, cloneBytes(data), cloneBytes(optional), time.Now(), true)}, nil
}

// NewRadioAdvanced builds an outbound ERP2 telegram with the send defaults
func NewRadioAdvanced(data []byte) (*RadioAdvancedPacket, error) {
	return NewRadioAdvancedPacket(data, []byte{SubTelSend, 0xFF})
}

// SubTelNum returns the number of sub-telegrams
func (p *RadioAdvancedPacket) SubTelNum() (byte, bool) {
	return p.optAt(0)
}

// DBm returns the received signal strength in dBm
func (p *RadioAdvancedPacket) DBm() (int, bool) {
	b, ok := p.optAt(1)
	if !ok {
		return 0, false
	}
	return -int(b), true
}
