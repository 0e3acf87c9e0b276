// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Transport is the byte stream to the transceiver. Read and Write are called
// from different goroutines while the transport is open. Read should return
// within a short timeout (0, nil is fine) so the read loop can notice stop
// requests; Close must unblock a pending Read.
type Transport interface {
	ListPorts() ([]string, error)
	Open(port string) error
	Close() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Link errors
var (
	ErrOpenFailed     = errors.New("failed to open port")
	ErrAlreadyRunning = errors.New("link already running")
)

const readBufferSize = 256

// LinkStats holds transport counters
type LinkStats struct {
	BytesIn     uint64
	BytesOut    uint64
	PacketsOut  uint64
	ReadErrors  uint64
	WriteErrors uint64
}

// Link owns the transport: it polls for available ports while idle and runs
// the read and write loops while acquiring. Port and connection-status
// observers are notified on the goroutine that detects the change.
type Link struct {
	transport Transport
	in        *ByteQueue
	out       *PacketQueue
	log       zerolog.Logger

	ioInterval   time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	ports   []string
	status  ConnectionStatus
	running bool

	portObservers   *observerTable[[]string]
	statusObservers *observerTable[ConnectionStatus]

	pollMu   sync.Mutex
	pollStop chan struct{}
	pollDone chan struct{}

	ioStop    chan struct{}
	readDone  chan struct{}
	writeDone chan struct{}

	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
	packetsOut  atomic.Uint64
	readErrors  atomic.Uint64
	writeErrors atomic.Uint64
}

// NewLink creates an idle link. Polling starts with StartPolling.
func NewLink(t Transport, in *ByteQueue, out *PacketQueue, ioInterval, pollInterval time.Duration, log zerolog.Logger) *Link {
	log = log.With().Str("component", "link").Logger()
	return &Link{
		transport:       t,
		in:              in,
		out:             out,
		log:             log,
		ioInterval:      ioInterval,
		pollInterval:    pollInterval,
		status:          StatusClosed,
		portObservers:   newObserverTable[[]string]("ports", log),
		statusObservers: newObserverTable[ConnectionStatus]("connection", log),
	}
}

// ============================================================
// Port polling
// ============================================================

// StartPolling starts the port poller if it is not already running
func (l *Link) StartPolling() {
	l.pollMu.Lock()
	defer l.pollMu.Unlock()

	if l.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	l.pollStop, l.pollDone = stop, done

	go func() {
		defer close(done)
		for {
			l.RefreshPorts()
			select {
			case <-stop:
				return
			case <-time.After(l.pollInterval):
			}
		}
	}()
}

// StopPolling stops the port poller and waits for it to exit
func (l *Link) StopPolling() {
	l.pollMu.Lock()
	defer l.pollMu.Unlock()

	if l.pollStop == nil {
		return
	}
	close(l.pollStop)
	<-l.pollDone
	l.pollStop, l.pollDone = nil, nil
}

// Polling reports whether the port poller is running
func (l *Link) Polling() bool {
	l.pollMu.Lock()
	defer l.pollMu.Unlock()
	return l.pollStop != nil
}

// RefreshPorts lists the transport's ports and notifies port observers if
// the set changed
func (l *Link) RefreshPorts() {
	ports, err := l.transport.ListPorts()
	if err != nil {
		l.log.Debug().Err(err).Msg("failed to list ports")
		return
	}
	if ports == nil {
		ports = []string{}
	}

	l.mu.Lock()
	changed := !slices.Equal(l.ports, ports)
	if changed {
		l.ports = ports
	}
	l.mu.Unlock()

	if changed {
		l.log.Debug().Strs("ports", ports).Msg("available ports changed")
		l.portObservers.notify(slices.Clone(ports))
	}
}

// Ports returns the last polled port list
func (l *Link) Ports() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.ports)
}

// ValidatePort reports whether port is currently offered by the transport
func (l *Link) ValidatePort(port string) bool {
	if port == "" {
		return false
	}
	ports, err := l.transport.ListPorts()
	if err != nil {
		l.log.Warn().Err(err).Msg("failed to list ports")
		return false
	}
	return slices.Contains(ports, port)
}

// ============================================================
// Observers
// ============================================================

// AddPortObserver registers a port-list observer. It immediately receives
// the current port list.
func (l *Link) AddPortObserver(name string, o EventListener[[]string]) bool {
	if !l.portObservers.add(name, o) {
		return false
	}
	l.portObservers.deliver(namedObserver[[]string]{name: name, listener: o}, l.Ports())
	return true
}

// RemovePortObserver unregisters a port-list observer
func (l *Link) RemovePortObserver(name string) bool {
	return l.portObservers.remove(name)
}

// AddStatusObserver registers a connection-status observer. It immediately
// receives the current status.
func (l *Link) AddStatusObserver(name string, o EventListener[ConnectionStatus]) bool {
	if !l.statusObservers.add(name, o) {
		return false
	}
	l.statusObservers.deliver(namedObserver[ConnectionStatus]{name: name, listener: o}, l.Status())
	return true
}

// RemoveStatusObserver unregisters a connection-status observer
func (l *Link) RemoveStatusObserver(name string) bool {
	return l.statusObservers.remove(name)
}

// Status returns the current connection status
func (l *Link) Status() ConnectionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Link) setStatus(s ConnectionStatus) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
	l.log.Info().Str("status", s.String()).Msg("connection status")
	l.statusObservers.notify(s)
}

// ============================================================
// Read / write loops
// ============================================================

// Running reports whether the read and write loops are active
func (l *Link) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start stops port polling, opens port and starts the read and write loops.
// On failure polling resumes and StatusOpenFailed is published.
func (l *Link) Start(port string) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.mu.Unlock()

	l.StopPolling()
	l.in.Clear()

	if err := l.transport.Open(port); err != nil {
		l.setStatus(StatusOpenFailed)
		l.StartPolling()
		return fmt.Errorf("%w %s: %v", ErrOpenFailed, port, err)
	}

	l.mu.Lock()
	l.running = true
	l.ioStop = make(chan struct{})
	l.readDone = make(chan struct{})
	l.writeDone = make(chan struct{})
	stop, readDone, writeDone := l.ioStop, l.readDone, l.writeDone
	l.mu.Unlock()

	go l.readLoop(stop, readDone)
	go l.writeLoop(stop, writeDone)

	l.log.Debug().Str("port", port).Msg("opened port")
	l.setStatus(StatusOpened)
	return nil
}

// Stop ends the read and write loops, closes the transport and resumes port
// polling. It is a no-op when not running.
func (l *Link) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	stop, readDone, writeDone := l.ioStop, l.readDone, l.writeDone
	l.mu.Unlock()

	close(stop)
	<-writeDone
	if err := l.transport.Close(); err != nil {
		l.log.Warn().Err(err).Msg("failed to close port")
	}
	<-readDone

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	l.setStatus(StatusClosed)
	l.StartPolling()
}

func (l *Link) readLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := l.transport.Read(buf)
		if n > 0 {
			l.bytesIn.Add(uint64(n))
			l.in.Push(buf[:n])
		}
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			l.readErrors.Add(1)
			l.log.Warn().Err(err).Msg("error while reading incoming data")
		}
		if n == 0 || err != nil {
			if !sleep(stop, l.ioInterval) {
				return
			}
		}
	}
}

func (l *Link) writeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		m, ok := l.out.Poll()
		if !ok {
			if !sleep(stop, l.ioInterval) {
				return
			}
			continue
		}

		frame, err := esp3.EncodePacket(m)
		if err != nil {
			l.writeErrors.Add(1)
			l.log.Warn().Err(err).Msg("failed to encode outbound packet")
			continue
		}
		n, err := l.transport.Write(frame)
		l.bytesOut.Add(uint64(n))
		if err != nil {
			l.writeErrors.Add(1)
			l.log.Warn().Err(err).Msg("failed to send packet")
			continue
		}
		l.packetsOut.Add(1)
		l.log.Debug().Str("type", esp3.FormatPacketType(m.Type())).Int("bytes", n).Msg("sent packet")
	}
}

// Stats returns the transport counters
func (l *Link) Stats() LinkStats {
	return LinkStats{
		BytesIn:     l.bytesIn.Load(),
		BytesOut:    l.bytesOut.Load(),
		PacketsOut:  l.packetsOut.Load(),
		ReadErrors:  l.readErrors.Load(),
		WriteErrors: l.writeErrors.Load(),
	}
}

// sleep waits for d or until stop is closed; it returns false on stop
func sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
