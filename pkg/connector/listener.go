// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package connector runs an ESP3 transceiver link: it reads bytes from a
// Transport, decodes frames, fans packets out to registered listeners and
// sends outbound packets, all governed by a small lifecycle state machine.
package connector

import "github.com/Thermoquad/eocon/pkg/esp3"

// Properties is the opaque per-listener configuration handed to
// PacketListener.Initialize
type Properties map[string]string

// Get returns the value for key, or def when unset
func (p Properties) Get(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Outbox accepts packets for transmission. Send returns false if the packet
// could not be queued.
type Outbox interface {
	Send(m esp3.Message) bool
}

// PacketListener receives decoded packets while acquisition is running.
//
// Initialize is called when acquisition starts and Close when it stops.
// ReceivePacket is called from worker goroutines and may be called
// concurrently with itself. Every ReceivePacket call of a session returns
// before Close is called. Initialize and Close run while the Connector holds
// its control lock, so no listener method may call Connector control methods
// synchronously.
type PacketListener interface {
	Initialize(props Properties, out Outbox) error
	Close()
	ReceivePacket(m esp3.Message)
	// SupportedPackets lists the packet types the listener wants;
	// esp3.TypeAny subscribes to everything
	SupportedPackets() []esp3.PacketType
}

// EventListener observes events of type T. Port and connection observers
// run on connector goroutines and must not call Connector control methods
// synchronously.
type EventListener[T any] interface {
	OnEvent(event T)
}

// EventFunc adapts a function to the EventListener interface
type EventFunc[T any] func(event T)

// OnEvent calls f
func (f EventFunc[T]) OnEvent(event T) {
	f(event)
}

// ConnectionStatus reports the state of the transport connection
type ConnectionStatus int

const (
	StatusClosed ConnectionStatus = iota
	StatusOpened
	StatusOpenFailed
)

// String returns the status name
func (s ConnectionStatus) String() string {
	switch s {
	case StatusClosed:
		return "CLOSED"
	case StatusOpened:
		return "OPENED"
	case StatusOpenFailed:
		return "OPEN_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Action is a change to the selected listener set
type Action int

const (
	// ActionUse means a listener was selected and will receive packets
	ActionUse Action = iota
	// ActionUnuse means a listener was deselected
	ActionUnuse
)

// String returns the action name
func (a Action) String() string {
	if a == ActionUse {
		return "USE"
	}
	return "UNUSE"
}

// ListenerAction is published to listener-action observers on every
// registration change
type ListenerAction struct {
	Name   string
	Action Action
}
