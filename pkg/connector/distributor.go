// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

// DefaultDispatchWorkers is the size of the packet delivery pool
const DefaultDispatchWorkers = 3

// actionWorkers is the size of the listener-action notification pool
const actionWorkers = 2

var errNilSubscription = errors.New("listener returned nil subscription")

type registration struct {
	name     string
	listener PacketListener
	props    Properties
}

// Distributor fans decoded packets out to the selected packet listeners.
//
// The selected set may only change while the distributor is inactive.
// Activation initializes every selected listener; packets dispatched while
// active are delivered asynchronously on a worker pool, one task per
// (packet, listener) pair, so a slow listener only delays itself.
type Distributor struct {
	mu       sync.Mutex
	selected []registration
	live     []registration // listeners initialized by the last Activate
	active   bool

	outbox  Outbox
	pool    *workerPool
	actions *workerPool

	actionObservers *observerTable[ListenerAction]
	log             zerolog.Logger

	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewDistributor creates an inactive distributor. Listeners receive outbox
// on Initialize.
func NewDistributor(outbox Outbox, workers int, log zerolog.Logger) *Distributor {
	if workers < 1 {
		workers = DefaultDispatchWorkers
	}
	log = log.With().Str("component", "distributor").Logger()
	return &Distributor{
		outbox:          outbox,
		pool:            newWorkerPool(workers),
		actions:         newWorkerPool(actionWorkers),
		actionObservers: newObserverTable[ListenerAction]("listener_action", log),
		log:             log,
	}
}

// Add selects a listener under name. It returns false while active, for a
// nil listener or when the name is taken.
func (d *Distributor) Add(name string, l PacketListener, props Properties) bool {
	if l == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return false
	}
	for _, r := range d.selected {
		if r.name == name {
			return false
		}
	}
	d.selected = append(d.selected, registration{name: name, listener: l, props: props})
	d.publish(name, ActionUse)
	return true
}

// Remove deselects the listener registered under name. It returns false
// while active or when no such listener is selected.
func (d *Distributor) Remove(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return false
	}
	for i, r := range d.selected {
		if r.name == name {
			d.selected = append(d.selected[:i:i], d.selected[i+1:]...)
			d.publish(name, ActionUnuse)
			return true
		}
	}
	return false
}

// Clear deselects every listener. It returns false while active.
func (d *Distributor) Clear() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return false
	}
	for _, r := range d.selected {
		d.publish(r.name, ActionUnuse)
	}
	d.selected = nil
	return true
}

// Listeners returns the selected listener names in registration order
func (d *Distributor) Listeners() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, len(d.selected))
	for i, r := range d.selected {
		names[i] = r.name
	}
	return names
}

// Active reports whether the distributor is active
func (d *Distributor) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Activate initializes every selected listener and starts delivery.
// A listener whose Initialize fails is logged and receives no packets until
// the next activation. Activate is a no-op when already active.
func (d *Distributor) Activate() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return
	}
	d.live = d.live[:0]
	for _, r := range d.selected {
		if err := d.initialize(r); err != nil {
			d.log.Warn().Err(err).Str("listener", r.name).Msg("listener initialization failed")
			continue
		}
		d.live = append(d.live, r)
	}
	d.active = true
	d.log.Debug().Int("listeners", len(d.live)).Msg("activated listeners")
}

func (d *Distributor) initialize(r registration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Initialize: %v", rec)
		}
	}()
	props := r.props
	if props == nil {
		props = Properties{}
	}
	return r.listener.Initialize(props, d.outbox)
}

// Deactivate stops delivery, waits for packets already dispatched to reach
// their listeners and then closes every initialized listener. It is a no-op
// when inactive.
func (d *Distributor) Deactivate() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return
	}
	d.active = false
	// Delivery tasks never take d.mu, and Dispatch blocks on it, so no task
	// from this session can outlive the wait.
	d.pool.Wait()
	for _, r := range d.live {
		d.closeListener(r)
	}
	d.live = nil
	d.log.Debug().Msg("stopped listeners")
}

func (d *Distributor) closeListener(r registration) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Warn().Str("listener", r.name).Interface("panic", rec).Msg("listener close panicked")
		}
	}()
	r.listener.Close()
}

// Dispatch hands m to every live listener subscribed to its type. It never
// blocks on delivery and does nothing while inactive.
func (d *Distributor) Dispatch(m esp3.Message) {
	if m == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return
	}
	// Submitting under d.mu keeps Deactivate from closing a listener that
	// still has a task on the way
	for _, r := range d.live {
		r := r
		d.pool.Submit(func() {
			d.deliver(r, m)
		})
	}
}

func (d *Distributor) deliver(r registration, m esp3.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			d.failed.Add(1)
			d.log.Warn().
				Str("listener", r.name).
				Interface("panic", rec).
				Msg("failed to distribute a packet to a listener")
		}
	}()

	ok, err := subscribed(r.listener, m.Type())
	if err != nil {
		d.failed.Add(1)
		d.log.Warn().Err(err).Str("listener", r.name).Msg("failed to distribute a packet to a listener")
		return
	}
	if !ok {
		return
	}
	r.listener.ReceivePacket(m)
	d.delivered.Add(1)
}

func subscribed(l PacketListener, kind esp3.PacketType) (bool, error) {
	types := l.SupportedPackets()
	if types == nil {
		return false, errNilSubscription
	}
	for _, t := range types {
		if t == esp3.TypeAny || t == kind {
			return true, nil
		}
	}
	return false, nil
}

// DeliveryStats returns the number of successful and failed deliveries
func (d *Distributor) DeliveryStats() (delivered, failed uint64) {
	return d.delivered.Load(), d.failed.Load()
}

// Wait blocks until every dispatched packet has been handed to its listeners
func (d *Distributor) Wait() {
	d.pool.Wait()
}

// waitActions blocks until every queued selection-change notification ran
func (d *Distributor) waitActions() {
	d.actions.Wait()
}

// ObserveActions registers an observer for selection changes
func (d *Distributor) ObserveActions(name string, l EventListener[ListenerAction]) bool {
	return d.actionObservers.add(name, l)
}

// UnobserveActions removes a selection-change observer
func (d *Distributor) UnobserveActions(name string) bool {
	return d.actionObservers.remove(name)
}

// publish is called with d.mu held
func (d *Distributor) publish(name string, action Action) {
	event := ListenerAction{Name: name, Action: action}
	d.actions.Submit(func() {
		d.actionObservers.notify(event)
	})
}

// Close deactivates the distributor and waits for pending deliveries
func (d *Distributor) Close() {
	d.Deactivate()
	d.pool.Close()
	d.actions.Close()
}
