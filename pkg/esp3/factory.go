// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"sync"
	"time"
)

// PacketFactory builds packets for type codes the built-in variants do not
// cover. It returns nil for type codes it does not handle.
type PacketFactory interface {
	CreatePacket(kind PacketType, data, optional []byte, timestamp time.Time, valid bool) Message
}

// FactoryFunc adapts a function to the PacketFactory interface
type FactoryFunc func(kind PacketType, data, optional []byte, timestamp time.Time, valid bool) Message

// CreatePacket calls f
func (f FactoryFunc) CreatePacket(kind PacketType, data, optional []byte, timestamp time.Time, valid bool) Message {
	return f(kind, data, optional, timestamp, valid)
}

type namedFactory struct {
	name    string
	factory PacketFactory
}

// Factory turns decoded frame contents into packets. Built-in type codes map
// to their variant; other codes are offered to the extension factories in
// registration order, and fall back to a generic Packet.
//
// Factory is safe for concurrent use.
type Factory struct {
	mu        sync.RWMutex
	factories []namedFactory

	// OnPanic, if set, is called when an extension factory panics
	OnPanic func(name string, recovered any)
}

// NewFactory creates a factory with no extension factories
func NewFactory() *Factory {
	return &Factory{}
}

// AddFactory registers an extension factory under name. It returns false if
// the name is already registered or the factory is nil.
func (f *Factory) AddFactory(name string, pf PacketFactory) bool {
	if pf == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, nf := range f.factories {
		if nf.name == name {
			return false
		}
	}
	f.factories = append(f.factories, namedFactory{name: name, factory: pf})
	return true
}

// RemoveFactory unregisters the extension factory with the given name
func (f *Factory) RemoveFactory(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, nf := range f.factories {
		if nf.name == name {
			f.factories = append(f.factories[:i:i], f.factories[i+1:]...)
			return true
		}
	}
	return false
}

// ClearFactories removes every extension factory
func (f *Factory) ClearFactories() {
	f.mu.Lock()
	f.factories = nil
	f.mu.Unlock()
}

// Factories returns the registered extension factory names in order
func (f *Factory) Factories() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, len(f.factories))
	for i, nf := range f.factories {
		names[i] = nf.name
	}
	return names
}

// Create builds the packet for the given frame contents. It never returns nil
// and never returns a TypeAny packet.
func (f *Factory) Create(kind PacketType, data, optional []byte, timestamp time.Time, valid bool) Message {
	data = cloneBytes(data)
	optional = cloneBytes(optional)

	if m := createBuiltin(kind, data, optional, timestamp, valid); m != nil {
		return m
	}

	f.mu.RLock()
	factories := f.factories
	f.mu.RUnlock()

	for _, nf := range factories {
		if m := f.tryFactory(nf, kind, data, optional, timestamp, valid); m != nil {
			return m
		}
	}

	p := newPacket(kind, data, optional, timestamp, valid)
	return &p
}

func (f *Factory) tryFactory(nf namedFactory, kind PacketType, data, optional []byte, timestamp time.Time, valid bool) (m Message) {
	defer func() {
		if r := recover(); r != nil {
			if f.OnPanic != nil {
				f.OnPanic(nf.name, r)
			}
			m = nil
		}
	}()

	// Each factory gets its own copies so a misbehaving one cannot alter
	// what the next one sees.
	m = nf.factory.CreatePacket(kind, cloneBytes(data), cloneBytes(optional), timestamp, valid)
	if isNilMessage(m) || m.Type() == TypeAny {
		return nil
	}
	return m
}

// isNilMessage also catches typed nil variants, whose promoted base() panics
func isNilMessage(m Message) (isNil bool) {
	defer func() {
		if recover() != nil {
			isNil = true
		}
	}()
	return m == nil || m.base() == nil
}

func createBuiltin(kind PacketType, data, optional []byte, timestamp time.Time, valid bool) Message {
	p := newPacket(kind, data, optional, timestamp, valid)
	switch kind {
	case TypeRadio:
		return &RadioPacket{p}
	case TypeResponse:
		return &ResponsePacket{p}
	case TypeRadioSubTel:
		return &RadioSubTelPacket{RadioPacket{p}}
	case TypeEvent:
		return &EventPacket{p}
	case TypeCommonCommand:
		return &CommonCommandPacket{p}
	case TypeSmartAckCommand:
		return &SmartAckCommandPacket{p}
	case TypeRemoteManCommand:
		return &RemoteManCommandPacket{p}
	case TypeRadioAdvanced:
		return &RadioAdvancedPacket{p}
	}
	return nil
}
