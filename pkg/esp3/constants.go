// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package esp3 implements the EnOcean Serial Protocol 3 (ESP3) framing used by
// EnOcean radio transceivers.
//
// A frame on the wire looks like this:
//
//	[0]    sync byte 0x55
//	[1..4] header: data length (2 bytes), optional length, packet type
//	[5]    CRC-8 over the header
//	[6..]  required data, optional data
//	[last] CRC-8 over required + optional data
//
// The package provides the checksum helpers, the packet model with one variant
// per standard packet type, an extensible packet factory, a pull-model frame
// decoder and the matching encoder.
package esp3

// Framing
const (
	SyncByte      = 0x55
	HeaderSize    = 4 // bytes covered by the header checksum
	FrameOverhead = 7 // sync + header + header checksum + payload checksum
)

// Length limits.
//
// The data length is split over two header bytes as ((n & 0xFF00) >> 2, n & 0xFF)
// and recombined as (hi << 2) + lo. Only lengths up to 0x3FF survive that split.
const (
	MaxDataLength     = 0x3FF
	MaxOptionalLength = 0xFF
)

// PacketType identifies the semantic variant of a packet (the header type byte).
type PacketType int

// Packet types defined by ESP3
const (
	// TypeAny only appears in listener subscriptions, never on the wire.
	TypeAny PacketType = -1

	TypeRadio            PacketType = 0x01
	TypeResponse         PacketType = 0x02
	TypeRadioSubTel      PacketType = 0x03
	TypeEvent            PacketType = 0x04
	TypeCommonCommand    PacketType = 0x05
	TypeSmartAckCommand  PacketType = 0x06
	TypeRemoteManCommand PacketType = 0x07
	TypeRadioAdvanced    PacketType = 0x0A
)

// Response return codes
const (
	RetOK              = 0x00
	RetError           = 0x01
	RetNotSupported    = 0x02
	RetWrongParam      = 0x03
	RetOperationDenied = 0x04
	RetLockSet         = 0x05
	RetBufferTooSmall  = 0x06
	RetNoFreeBuffer    = 0x07
)

// Event codes
const (
	SAReclaimNotSuccessful = 0x01
	SAConfirmLearn         = 0x02
	SALearnAck             = 0x03
	COReady                = 0x04
	COEventSecureDevices   = 0x05
)

// Common command codes
const (
	CoWrSleep           = 0x01
	CoWrReset           = 0x02
	CoRdVersion         = 0x03
	CoRdSysLog          = 0x04
	CoWrSysLog          = 0x05
	CoWrBIST            = 0x06
	CoWrIDBase          = 0x07
	CoRdIDBase          = 0x08
	CoWrRepeater        = 0x09
	CoRdRepeater        = 0x0A
	CoWrFilterAdd       = 0x0B
	CoWrFilterDel       = 0x0C
	CoWrFilterDelAll    = 0x0D
	CoWrFilterEnable    = 0x0E
	CoRdFilter          = 0x0F
	CoWrWaitMaturity    = 0x10
	CoWrSubTel          = 0x11
	CoWrMem             = 0x12
	CoRdMem             = 0x13
	CoRdMemAddress      = 0x14
	CoRdSecurity        = 0x15
	CoWrSecurity        = 0x16
	CoWrLearnMode       = 0x17
	CoRdLearnMode       = 0x18
	CoWrSecureDeviceAdd = 0x19
	CoWrSecureDeviceDel = 0x1A
	CoRdSecureDevices   = 0x1B
	CoWrMode            = 0x1C
)

// Smart Ack command codes
const (
	SaWrLearnMode      = 0x01
	SaRdLearnMode      = 0x02
	SaWrLearnConfirm   = 0x03
	SaWrClientLearnRq  = 0x04
	SaWrReset          = 0x05
	SaRdLearnedClients = 0x06
	SaWrReclaims       = 0x07
	SaWrPostmaster     = 0x08
)

// Radio telegram organisation (RORG) values seen in the first data byte of
// radio packets
const (
	RORGRPS = 0xF6
	RORG1BS = 0xD5
	RORG4BS = 0xA5
	RORGVLD = 0xD2
	RORGUTE = 0xD4
	RORGMSC = 0xD1
	RORGSEC = 0x30
)

// Radio optional data layout
const (
	radioOptionalLength     = 7
	subTelOptionalFixed     = 9
	subTelEntrySize         = 3
	remoteManOptionalLength = 10
)
