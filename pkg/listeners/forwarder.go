// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package listeners

import (
	"sync"
	"sync/atomic"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Forwarder hands received packets to a channel without blocking. Packets
// that do not fit in the channel buffer are dropped and counted.
type Forwarder struct {
	ch chan esp3.Message

	mu     sync.Mutex
	types  []esp3.PacketType
	outbox connector.Outbox

	dropped atomic.Uint64
}

// NewForwarder creates a forwarder with the given channel buffer, subscribed
// to types (every type when none are given)
func NewForwarder(buffer int, types ...esp3.PacketType) *Forwarder {
	if len(types) == 0 {
		types = []esp3.PacketType{esp3.TypeAny}
	}
	return &Forwarder{ch: make(chan esp3.Message, buffer), types: types}
}

// C returns the packet channel. It is never closed.
func (f *Forwarder) C() <-chan esp3.Message {
	return f.ch
}

// Initialize keeps the outbox and, if set, the types property
func (f *Forwarder) Initialize(props connector.Properties, out connector.Outbox) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := props[PropTypes]; ok {
		types, err := typesFrom(props)
		if err != nil {
			return err
		}
		f.types = types
	}
	f.outbox = out
	return nil
}

// Close forgets the outbox
func (f *Forwarder) Close() {
	f.mu.Lock()
	f.outbox = nil
	f.mu.Unlock()
}

// ReceivePacket forwards m or drops it when the channel is full
func (f *Forwarder) ReceivePacket(m esp3.Message) {
	select {
	case f.ch <- m:
	default:
		f.dropped.Add(1)
	}
}

// SupportedPackets returns the subscribed types
func (f *Forwarder) SupportedPackets() []esp3.PacketType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.types
}

// Send queues m for transmission through the outbox handed to Initialize.
// It returns false while the forwarder is not initialized.
func (f *Forwarder) Send(m esp3.Message) bool {
	f.mu.Lock()
	out := f.outbox
	f.mu.Unlock()
	if out == nil {
		return false
	}
	return out.Send(m)
}

// Dropped returns the number of packets dropped on a full channel
func (f *Forwarder) Dropped() uint64 {
	return f.dropped.Load()
}
