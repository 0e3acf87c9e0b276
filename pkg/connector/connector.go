// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Connector is the control surface of an ESP3 link. Every control method is
// one lifecycle transition; transitions are serialized, and a rejected one
// leaves the state unchanged, logs a warning and returns the reason.
type Connector struct {
	mu     sync.Mutex
	state  State
	closed bool

	m     *machine
	stats *esp3.Statistics
	in    *ByteQueue
	out   *PacketQueue
	log   zerolog.Logger
}

// New creates a connector over t in the Initialized phase and starts polling
// for available ports.
func New(t Transport, opts ...Option) (*Connector, error) {
	if t == nil {
		return nil, errors.New("connector: nil transport")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With().Str("module", "connector").Logger()

	factory := o.factory
	if factory == nil {
		factory = esp3.NewFactory()
	}
	if factory.OnPanic == nil {
		factory.OnPanic = func(name string, recovered any) {
			log.Warn().Str("factory", name).Interface("panic", recovered).Msg("packet factory panicked")
		}
	}

	stats := esp3.NewStatistics()
	in := NewByteQueue()
	out := NewPacketQueue(o.outboundLimit)

	decOpts := []esp3.DecoderOption{esp3.WithStatistics(stats)}
	if o.retain {
		decOpts = append(decOpts, esp3.WithPartialFrameRetention())
	}
	decoder := esp3.NewDecoder(in, factory, decOpts...)

	dist := NewDistributor(out, o.workers, log)
	link := NewLink(t, in, out, o.ioInterval, o.pollInterval, log)

	c := &Connector{
		state: State{Phase: PhaseEntry},
		m: &machine{
			factory: factory,
			dist:    dist,
			link:    link,
			reader:  newPacketReader(decoder, dist.Dispatch, o.decodeInterval, log),
			outbox:  out,
		},
		stats: stats,
		in:    in,
		out:   out,
		log:   log,
	}
	if err := c.apply(Operation{Kind: OpInitialize}); err != nil {
		return nil, err
	}
	link.StartPolling()
	return c, nil
}

func (c *Connector) apply(op Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	next, err := transition(c.state, op, c.m)
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("op", op.Kind.String()).
			Str("state", c.state.String()).
			Msg("transition rejected")
		return err
	}
	if next != c.state {
		c.log.Debug().
			Str("op", op.Kind.String()).
			Str("from", c.state.String()).
			Str("to", next.String()).
			Msg("transition")
	}
	c.state = next
	return nil
}

// StartAcquisition opens the configured port and starts delivering packets
func (c *Connector) StartAcquisition() error {
	return c.apply(Operation{Kind: OpStartAcquisition})
}

// StopAcquisition closes the port and deactivates the listeners
func (c *Connector) StopAcquisition() error {
	return c.apply(Operation{Kind: OpStopAcquisition})
}

// AddPacketListener selects a packet listener under name
func (c *Connector) AddPacketListener(name string, l PacketListener, props Properties) error {
	return c.apply(Operation{Kind: OpAddPacketListener, Name: name, Listener: l, Properties: props})
}

// RemovePacketListener deselects the packet listener registered under name
func (c *Connector) RemovePacketListener(name string) error {
	return c.apply(Operation{Kind: OpRemovePacketListener, Name: name})
}

// AddPacketFactory registers an extension packet factory under name
func (c *Connector) AddPacketFactory(name string, f esp3.PacketFactory) error {
	return c.apply(Operation{Kind: OpAddPacketFactory, Name: name, Factory: f})
}

// RemovePacketFactory unregisters the extension packet factory under name
func (c *Connector) RemovePacketFactory(name string) error {
	return c.apply(Operation{Kind: OpRemovePacketFactory, Name: name})
}

// AddPortListener registers an observer of the available port list
func (c *Connector) AddPortListener(name string, l EventListener[[]string]) error {
	return c.apply(Operation{Kind: OpAddPortListener, Name: name, PortListener: l})
}

// RemovePortListener unregisters a port list observer
func (c *Connector) RemovePortListener(name string) error {
	return c.apply(Operation{Kind: OpRemovePortListener, Name: name})
}

// AddConnectionListener registers an observer of the connection status
func (c *Connector) AddConnectionListener(name string, l EventListener[ConnectionStatus]) error {
	return c.apply(Operation{Kind: OpAddConnectionListener, Name: name, ConnectionListener: l})
}

// RemoveConnectionListener unregisters a connection status observer
func (c *Connector) RemoveConnectionListener(name string) error {
	return c.apply(Operation{Kind: OpRemoveConnectionListener, Name: name})
}

// SetPort configures the port used by the next StartAcquisition
func (c *Connector) SetPort(port string) error {
	return c.apply(Operation{Kind: OpSetPort, Port: port})
}

// SendPacket queues m for transmission
func (c *Connector) SendPacket(m esp3.Message) error {
	return c.apply(Operation{Kind: OpSendPacket, Message: m})
}

// State returns the current lifecycle state
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ports returns the last polled list of available ports
func (c *Connector) Ports() []string {
	return c.m.link.Ports()
}

// Status returns the current connection status
func (c *Connector) Status() ConnectionStatus {
	return c.m.link.Status()
}

// Listeners returns the names of the selected packet listeners
func (c *Connector) Listeners() []string {
	return c.m.dist.Listeners()
}

// Statistics returns a snapshot of the decoder statistics
func (c *Connector) Statistics() esp3.StatsSnapshot {
	return c.stats.Snapshot()
}

// ResetStatistics clears the decoder statistics
func (c *Connector) ResetStatistics() {
	c.stats.Reset()
}

// DeliveryStats returns the number of successful and failed listener
// deliveries
func (c *Connector) DeliveryStats() (delivered, failed uint64) {
	return c.m.dist.DeliveryStats()
}

// LinkStats returns the transport counters
func (c *Connector) LinkStats() LinkStats {
	return c.m.link.Stats()
}

// QueueDepths returns the number of buffered inbound bytes and outbound
// packets
func (c *Connector) QueueDepths() (inbound, outbound int) {
	return c.in.Len(), c.out.Len()
}

// ObserveListeners registers an observer of packet listener selection
// changes
func (c *Connector) ObserveListeners(name string, l EventListener[ListenerAction]) bool {
	return c.m.dist.ObserveActions(name, l)
}

// UnobserveListeners removes a selection change observer
func (c *Connector) UnobserveListeners(name string) bool {
	return c.m.dist.UnobserveActions(name)
}

// Flush blocks until every packet dispatched so far has been delivered. It
// may be called while acquisition is running, in which case it also waits
// for packets dispatched during the call.
func (c *Connector) Flush() {
	c.m.dist.Wait()
}

// Close stops acquisition if running, stops port polling and releases the
// worker pools. Control methods return ErrClosed afterwards.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if c.state.Phase == PhaseRunning {
		next, err := transition(c.state, Operation{Kind: OpStopAcquisition}, c.m)
		if err != nil {
			return err
		}
		c.state = next
	}
	c.m.link.StopPolling()
	c.m.dist.Close()
	c.closed = true
	c.log.Debug().Msg("connector closed")
	return nil
}
