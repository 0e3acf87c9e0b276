// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

// crcPolynomial is the ESP3 CRC-8 polynomial x^8 + x^2 + x + 1.
const crcPolynomial = 0x07

var crcTable = makeCRCTable()

func makeCRCTable() [256]byte {
	var table [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// ProcessCRC8 folds one byte into a running CRC-8 value
func ProcessCRC8(crc, b byte) byte {
	return crcTable[crc^b]
}

// HeaderCRC8 computes the header checksum over the given header bytes
func HeaderCRC8(header []byte) byte {
	var crc byte
	for _, b := range header {
		crc = ProcessCRC8(crc, b)
	}
	return crc
}

// PayloadChecksum computes the trailing frame checksum over required data
// followed by optional data
func PayloadChecksum(data, optional []byte) byte {
	var crc byte
	for _, b := range data {
		crc = ProcessCRC8(crc, b)
	}
	for _, b := range optional {
		crc = ProcessCRC8(crc, b)
	}
	return crc
}
