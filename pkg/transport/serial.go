// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides byte-stream transports for the ESP3 connector:
// a local serial port and a WebSocket bridge to a remote transceiver.
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the ESP3 line speed
const DefaultBaudRate = 57600

// DefaultReadTimeout bounds a single serial read so read loops can notice
// stop requests
const DefaultReadTimeout = 100 * time.Millisecond

// ErrNotOpen is returned by Read and Write before Open or after Close
var ErrNotOpen = errors.New("transport not open")

// Serial is a serial port transport. The zero value is not usable; create
// one with NewSerial.
type Serial struct {
	BaudRate    int
	ReadTimeout time.Duration

	mu   sync.Mutex
	port serial.Port
	name string
}

// NewSerial creates a serial transport at baud; baud <= 0 selects
// DefaultBaudRate
func NewSerial(baud int) *Serial {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &Serial{BaudRate: baud, ReadTimeout: DefaultReadTimeout}
}

// ListPorts returns the serial ports present on the system
func (s *Serial) ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Open opens portName as 8N1 at the configured baud rate
func (s *Serial) Open(portName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return fmt.Errorf("serial port %s already open", s.name)
	}

	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if s.ReadTimeout > 0 {
		if err := port.SetReadTimeout(s.ReadTimeout); err != nil {
			port.Close()
			return fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
		}
	}

	s.port = port
	s.name = portName
	return nil
}

// Close closes the port. Closing a closed transport is a no-op.
func (s *Serial) Close() error {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()

	if port == nil {
		return nil
	}
	return port.Close()
}

func (s *Serial) current() (serial.Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil, ErrNotOpen
	}
	return s.port, nil
}

// Read reads available bytes, returning 0, nil when the read timeout
// expires with nothing received
func (s *Serial) Read(p []byte) (int, error) {
	port, err := s.current()
	if err != nil {
		return 0, err
	}
	return port.Read(p)
}

// Write writes p to the port
func (s *Serial) Write(p []byte) (int, error) {
	port, err := s.current()
	if err != nil {
		return 0, err
	}
	return port.Write(p)
}

// String describes the transport for logs and banners
func (s *Serial) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.name == "" {
		return fmt.Sprintf("Serial @ %d baud", s.BaudRate)
	}
	return fmt.Sprintf("Serial: %s @ %d baud", s.name, s.BaudRate)
}
