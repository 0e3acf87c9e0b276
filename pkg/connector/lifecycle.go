// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Lifecycle errors
var (
	ErrNotPermitted = errors.New("operation not permitted in current state")
	ErrInvalidPort  = errors.New("invalid port")
	ErrRejected     = errors.New("operation rejected")
	ErrClosed       = errors.New("connector closed")
)

// Phase is a connector lifecycle phase
type Phase int

const (
	PhaseEntry Phase = iota
	PhaseInitialized
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseEntry:
		return "ENTRY"
	case PhaseInitialized:
		return "INITIALIZED"
	case PhaseRunning:
		return "RUNNING"
	default:
		return fmt.Sprintf("PHASE_%d", int(p))
	}
}

// State is the connector's lifecycle state. Port is the configured port and
// survives stop/start cycles.
type State struct {
	Phase Phase
	Port  string
}

func (s State) String() string {
	if s.Port == "" {
		return s.Phase.String()
	}
	return s.Phase.String() + "(" + s.Port + ")"
}

// OpKind identifies a lifecycle operation
type OpKind int

const (
	OpInitialize OpKind = iota
	OpStartAcquisition
	OpStopAcquisition
	OpAddPacketListener
	OpRemovePacketListener
	OpAddPacketFactory
	OpRemovePacketFactory
	OpAddPortListener
	OpRemovePortListener
	OpAddConnectionListener
	OpRemoveConnectionListener
	OpSetPort
	OpSendPacket
)

var opNames = map[OpKind]string{
	OpInitialize:               "initialize",
	OpStartAcquisition:         "start_acquisition",
	OpStopAcquisition:          "stop_acquisition",
	OpAddPacketListener:        "add_packet_listener",
	OpRemovePacketListener:     "remove_packet_listener",
	OpAddPacketFactory:         "add_packet_factory",
	OpRemovePacketFactory:      "remove_packet_factory",
	OpAddPortListener:          "add_port_listener",
	OpRemovePortListener:       "remove_port_listener",
	OpAddConnectionListener:    "add_connection_listener",
	OpRemoveConnectionListener: "remove_connection_listener",
	OpSetPort:                  "set_port",
	OpSendPacket:               "send_packet",
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return fmt.Sprintf("op_%d", int(k))
}

// Operation is a request applied to the lifecycle. Only the fields relevant
// to Kind are read.
type Operation struct {
	Kind OpKind
	Name string

	Listener           PacketListener
	Properties         Properties
	Factory            esp3.PacketFactory
	PortListener       EventListener[[]string]
	ConnectionListener EventListener[ConnectionStatus]

	Port    string
	Message esp3.Message
}

// machine is everything a transition acts on
type machine struct {
	factory *esp3.Factory
	dist    *Distributor
	link    *Link
	reader  *packetReader
	outbox  Outbox
}

// transition applies op to s. On error the returned state is s unchanged.
func transition(s State, op Operation, m *machine) (State, error) {
	switch s.Phase {
	case PhaseEntry:
		if op.Kind == OpInitialize {
			return State{Phase: PhaseInitialized}, nil
		}
	case PhaseInitialized:
		return initialized(s, op, m)
	case PhaseRunning:
		return running(s, op, m)
	}
	return s, notPermitted(s, op)
}

func initialized(s State, op Operation, m *machine) (State, error) {
	switch op.Kind {
	case OpStartAcquisition:
		if !m.link.ValidatePort(s.Port) {
			return s, fmt.Errorf("%w: %q is not available", ErrInvalidPort, s.Port)
		}
		m.dist.Activate()
		if err := m.link.Start(s.Port); err != nil {
			m.dist.Deactivate()
			return s, err
		}
		m.reader.start()
		return State{Phase: PhaseRunning, Port: s.Port}, nil

	case OpSetPort:
		if !m.link.ValidatePort(op.Port) {
			return s, fmt.Errorf("%w: %q is not available", ErrInvalidPort, op.Port)
		}
		return State{Phase: PhaseInitialized, Port: op.Port}, nil

	case OpAddPacketListener:
		return s, rejectUnless(m.dist.Add(op.Name, op.Listener, op.Properties), op)
	case OpRemovePacketListener:
		return s, rejectUnless(m.dist.Remove(op.Name), op)
	case OpAddPacketFactory:
		return s, rejectUnless(m.factory.AddFactory(op.Name, op.Factory), op)
	case OpRemovePacketFactory:
		return s, rejectUnless(m.factory.RemoveFactory(op.Name), op)
	case OpAddPortListener:
		return s, rejectUnless(m.link.AddPortObserver(op.Name, op.PortListener), op)
	case OpRemovePortListener:
		return s, rejectUnless(m.link.RemovePortObserver(op.Name), op)
	case OpAddConnectionListener:
		return s, rejectUnless(m.link.AddStatusObserver(op.Name, op.ConnectionListener), op)
	case OpRemoveConnectionListener:
		return s, rejectUnless(m.link.RemoveStatusObserver(op.Name), op)
	}
	return s, notPermitted(s, op)
}

func running(s State, op Operation, m *machine) (State, error) {
	switch op.Kind {
	case OpStopAcquisition:
		m.link.Stop()
		m.reader.halt()
		m.dist.Deactivate()
		return State{Phase: PhaseInitialized, Port: s.Port}, nil

	case OpSendPacket:
		if op.Message == nil {
			return s, fmt.Errorf("%w: nil packet", ErrRejected)
		}
		if !m.outbox.Send(op.Message) {
			return s, fmt.Errorf("%w: outbound queue full", ErrRejected)
		}
		return s, nil
	}
	return s, notPermitted(s, op)
}

func rejectUnless(ok bool, op Operation) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: %s %q", ErrRejected, op.Kind, op.Name)
}

func notPermitted(s State, op Operation) error {
	return fmt.Errorf("%w: %s in %s", ErrNotPermitted, op.Kind, s.Phase)
}
