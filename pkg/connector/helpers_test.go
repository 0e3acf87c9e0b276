// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

// ============================================================
// Fake transport
// ============================================================

var errPortClosed = errors.New("port closed")

type fakeTransport struct {
	mu      sync.Mutex
	ports   []string
	openErr error
	listErr error
	open    bool
	port    string
	rx      []byte
	tx      []byte
	opens   int
	closes  int
}

func newFakeTransport(ports ...string) *fakeTransport {
	return &fakeTransport{ports: ports}
}

func (f *fakeTransport) ListPorts() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.ports...), nil
}

func (f *fakeTransport) Open(port string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	f.port = port
	f.opens++
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closes++
	return nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return 0, errPortClosed
	}
	n := copy(p, f.rx)
	f.rx = f.rx[n:]
	return n, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return 0, errPortClosed
	}
	f.tx = append(f.tx, p...)
	return len(p), nil
}

func (f *fakeTransport) feed(b []byte) {
	f.mu.Lock()
	f.rx = append(f.rx, b...)
	f.mu.Unlock()
}

func (f *fakeTransport) setPorts(ports ...string) {
	f.mu.Lock()
	f.ports = ports
	f.mu.Unlock()
}

func (f *fakeTransport) setOpenErr(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.tx...)
}

func (f *fakeTransport) isOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// ============================================================
// Recording listener
// ============================================================

type recordingListener struct {
	mu      sync.Mutex
	types   []esp3.PacketType
	packets []esp3.Message
	props   Properties
	outbox  Outbox
	inits   int
	closes  int
	initErr error
}

func newRecordingListener(types ...esp3.PacketType) *recordingListener {
	return &recordingListener{types: types}
}

func (l *recordingListener) Initialize(props Properties, out Outbox) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initErr != nil {
		return l.initErr
	}
	l.props = props
	l.outbox = out
	l.inits++
	return nil
}

func (l *recordingListener) Close() {
	l.mu.Lock()
	l.closes++
	l.mu.Unlock()
}

func (l *recordingListener) ReceivePacket(m esp3.Message) {
	l.mu.Lock()
	l.packets = append(l.packets, m)
	l.mu.Unlock()
}

func (l *recordingListener) SupportedPackets() []esp3.PacketType {
	return l.types
}

func (l *recordingListener) received() []esp3.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]esp3.Message(nil), l.packets...)
}

func (l *recordingListener) counts() (inits, closes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inits, l.closes
}

// panickingListener panics from the configured method
type panickingListener struct {
	onSupported bool
	onReceive   bool
	nilTypes    bool
}

func (l *panickingListener) Initialize(Properties, Outbox) error { return nil }
func (l *panickingListener) Close()                              {}

func (l *panickingListener) ReceivePacket(esp3.Message) {
	if l.onReceive {
		panic("receive failed")
	}
}

func (l *panickingListener) SupportedPackets() []esp3.PacketType {
	if l.onSupported {
		panic("subscription failed")
	}
	if l.nilTypes {
		return nil
	}
	return []esp3.PacketType{esp3.TypeAny}
}

// ============================================================
// Helpers
// ============================================================

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustRadio(t *testing.T) *esp3.RadioPacket {
	t.Helper()
	p, err := esp3.NewRadioTelegram(esp3.RORGRPS, []byte{0x50}, 0x01020304, 0x30)
	if err != nil {
		t.Fatalf("NewRadioTelegram: %v", err)
	}
	return p
}

func mustEvent(t *testing.T) *esp3.EventPacket {
	t.Helper()
	p, err := esp3.NewEvent(esp3.COReady, []byte{0x00})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return p
}

func fastOptions() []Option {
	return []Option{
		WithDecodeInterval(time.Millisecond),
		WithIOInterval(time.Millisecond),
		WithPortPollInterval(5 * time.Millisecond),
	}
}
