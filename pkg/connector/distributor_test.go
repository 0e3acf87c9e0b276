// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

func newTestDistributor(t *testing.T) (*Distributor, *PacketQueue) {
	t.Helper()
	out := NewPacketQueue(0)
	d := NewDistributor(out, 3, zerolog.Nop())
	t.Cleanup(d.Close)
	return d, out
}

// ============================================================
// Distributor Tests
// ============================================================

func TestDistributorDispatchFiltering(t *testing.T) {
	d, _ := newTestDistributor(t)

	radio := newRecordingListener(esp3.TypeRadio)
	event := newRecordingListener(esp3.TypeEvent)
	all := newRecordingListener(esp3.TypeAny)
	none := newRecordingListener()
	for name, l := range map[string]*recordingListener{"radio": radio, "event": event, "all": all, "none": none} {
		if !d.Add(name, l, nil) {
			t.Fatalf("Add(%s) failed", name)
		}
	}
	d.Activate()

	d.Dispatch(mustRadio(t))
	d.Dispatch(mustRadio(t))
	d.Dispatch(mustEvent(t))
	d.Wait()

	tests := []struct {
		name string
		l    *recordingListener
		want int
	}{
		{"radio", radio, 2},
		{"event", event, 1},
		{"all", all, 3},
		{"none", none, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.l.received()); got != tt.want {
				t.Errorf("received %d packets, want %d", got, tt.want)
			}
		})
	}

	for _, m := range radio.received() {
		if m.Type() != esp3.TypeRadio {
			t.Errorf("radio listener got %s", esp3.FormatPacketType(m.Type()))
		}
	}
}

func TestDistributorInactiveIsNoop(t *testing.T) {
	d, _ := newTestDistributor(t)
	l := newRecordingListener(esp3.TypeAny)
	d.Add("l", l, nil)

	d.Dispatch(mustRadio(t))
	d.Wait()
	if got := len(l.received()); got != 0 {
		t.Errorf("inactive distributor delivered %d packets", got)
	}

	d.Activate()
	d.Deactivate()
	d.Dispatch(mustRadio(t))
	d.Wait()
	if got := len(l.received()); got != 0 {
		t.Errorf("deactivated distributor delivered %d packets", got)
	}
}

func TestDistributorDispatchNil(t *testing.T) {
	d, _ := newTestDistributor(t)
	l := newRecordingListener(esp3.TypeAny)
	d.Add("l", l, nil)
	d.Activate()

	d.Dispatch(nil)
	d.Wait()
	if got := len(l.received()); got != 0 {
		t.Errorf("nil dispatch delivered %d packets", got)
	}
}

func TestDistributorRejectsChangesWhileActive(t *testing.T) {
	d, _ := newTestDistributor(t)
	d.Add("a", newRecordingListener(), nil)
	d.Activate()

	if d.Add("b", newRecordingListener(), nil) {
		t.Error("Add succeeded while active")
	}
	if d.Remove("a") {
		t.Error("Remove succeeded while active")
	}
	if d.Clear() {
		t.Error("Clear succeeded while active")
	}
	if names := d.Listeners(); len(names) != 1 || names[0] != "a" {
		t.Errorf("Listeners() = %v, want [a]", names)
	}

	d.Deactivate()
	if !d.Add("b", newRecordingListener(), nil) {
		t.Error("Add failed while inactive")
	}
	if !d.Clear() {
		t.Error("Clear failed while inactive")
	}
	if names := d.Listeners(); len(names) != 0 {
		t.Errorf("Listeners() after Clear = %v", names)
	}
}

func TestDistributorAddValidation(t *testing.T) {
	d, _ := newTestDistributor(t)
	if d.Add("nil", nil, nil) {
		t.Error("Add accepted a nil listener")
	}
	if !d.Add("a", newRecordingListener(), nil) {
		t.Fatal("Add failed")
	}
	if d.Add("a", newRecordingListener(), nil) {
		t.Error("Add accepted a duplicate name")
	}
	if d.Remove("missing") {
		t.Error("Remove of unknown name succeeded")
	}
}

func TestDistributorActivateLifecycle(t *testing.T) {
	d, out := newTestDistributor(t)
	l := newRecordingListener(esp3.TypeAny)
	d.Add("l", l, Properties{"k": "v"})

	d.Activate()
	d.Activate()
	if inits, _ := l.counts(); inits != 1 {
		t.Errorf("inits = %d after double Activate, want 1", inits)
	}
	if !d.Active() {
		t.Error("Active() = false after Activate")
	}
	if l.outbox != Outbox(out) {
		t.Error("listener did not receive the distributor's outbox")
	}
	if l.props.Get("k", "") != "v" {
		t.Errorf("props = %v", l.props)
	}

	d.Deactivate()
	d.Deactivate()
	if _, closes := l.counts(); closes != 1 {
		t.Errorf("closes = %d after double Deactivate, want 1", closes)
	}
}

func TestDistributorNilPropertiesBecomeEmpty(t *testing.T) {
	d, _ := newTestDistributor(t)
	l := newRecordingListener()
	d.Add("l", l, nil)
	d.Activate()
	if l.props == nil {
		t.Error("listener received nil Properties")
	}
}

func TestDistributorInitializeFailure(t *testing.T) {
	d, _ := newTestDistributor(t)

	bad := newRecordingListener(esp3.TypeAny)
	bad.initErr = errors.New("no such file")
	good := newRecordingListener(esp3.TypeAny)
	d.Add("bad", bad, nil)
	d.Add("good", good, nil)
	d.Activate()

	d.Dispatch(mustRadio(t))
	d.Wait()

	if got := len(bad.received()); got != 0 {
		t.Errorf("failed listener received %d packets", got)
	}
	if got := len(good.received()); got != 1 {
		t.Errorf("good listener received %d packets, want 1", got)
	}

	d.Deactivate()
	if _, closes := bad.counts(); closes != 0 {
		t.Errorf("failed listener closed %d times, want 0", closes)
	}
}

func TestDistributorFailingListenersIsolated(t *testing.T) {
	d, _ := newTestDistributor(t)

	good := newRecordingListener(esp3.TypeAny)
	d.Add("subscription-panic", &panickingListener{onSupported: true}, nil)
	d.Add("receive-panic", &panickingListener{onReceive: true}, nil)
	d.Add("nil-subscription", &panickingListener{nilTypes: true}, nil)
	d.Add("good", good, nil)
	d.Activate()

	d.Dispatch(mustRadio(t))
	d.Dispatch(mustEvent(t))
	d.Wait()

	if got := len(good.received()); got != 2 {
		t.Errorf("good listener received %d packets, want 2", got)
	}
	delivered, failed := d.DeliveryStats()
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if failed != 6 {
		t.Errorf("failed = %d, want 6", failed)
	}
}

func TestDistributorConcurrentDispatch(t *testing.T) {
	d, _ := newTestDistributor(t)
	l := newRecordingListener(esp3.TypeAny)
	d.Add("l", l, nil)
	d.Activate()

	const producers, perProducer = 4, 50
	pkt := mustRadio(t)
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				d.Dispatch(pkt)
			}
		}()
	}
	wg.Wait()
	d.Wait()

	if got := len(l.received()); got != producers*perProducer {
		t.Errorf("received %d packets, want %d", got, producers*perProducer)
	}
}

func TestDistributorActionObservers(t *testing.T) {
	d, _ := newTestDistributor(t)

	var mu sync.Mutex
	var events []ListenerAction
	d.ObserveActions("obs", EventFunc[ListenerAction](func(a ListenerAction) {
		mu.Lock()
		events = append(events, a)
		mu.Unlock()
	}))

	d.Add("a", newRecordingListener(), nil)
	d.Add("b", newRecordingListener(), nil)
	d.Remove("a")
	d.Clear()
	d.waitActions()

	mu.Lock()
	counts := map[ListenerAction]int{}
	for _, e := range events {
		counts[e]++
	}
	mu.Unlock()

	want := map[ListenerAction]int{
		{Name: "a", Action: ActionUse}:   1,
		{Name: "b", Action: ActionUse}:   1,
		{Name: "a", Action: ActionUnuse}: 1,
		{Name: "b", Action: ActionUnuse}: 1,
	}
	for ev, n := range want {
		if counts[ev] != n {
			t.Errorf("%s %s seen %d times, want %d", ev.Name, ev.Action, counts[ev], n)
		}
	}

	if !d.UnobserveActions("obs") {
		t.Error("UnobserveActions failed")
	}
	d.Add("c", newRecordingListener(), nil)
	d.waitActions()
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 4 {
		t.Errorf("events after unobserve = %d, want 4", len(events))
	}
}

// slowListener takes a while per packet and records deliveries that arrive
// after Close
type slowListener struct {
	delay time.Duration

	mu        sync.Mutex
	closed    bool
	received  int
	afterStop int
}

func (l *slowListener) Initialize(Properties, Outbox) error {
	l.mu.Lock()
	l.closed = false
	l.mu.Unlock()
	return nil
}

func (l *slowListener) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *slowListener) ReceivePacket(esp3.Message) {
	time.Sleep(l.delay)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.afterStop++
		return
	}
	l.received++
}

func (l *slowListener) SupportedPackets() []esp3.PacketType {
	return []esp3.PacketType{esp3.TypeAny}
}

func TestDistributorDeactivateDeliversBeforeClose(t *testing.T) {
	d := NewDistributor(NewPacketQueue(0), 1, zerolog.Nop())
	defer d.Close()

	l := &slowListener{delay: 5 * time.Millisecond}
	d.Add("slow", l, nil)
	d.Activate()

	for i := 0; i < 20; i++ {
		d.Dispatch(mustRadio(t))
	}
	d.Deactivate()

	l.mu.Lock()
	received, afterStop := l.received, l.afterStop
	l.mu.Unlock()
	if received != 20 || afterStop != 0 {
		t.Errorf("received = %d, after Close = %d, want 20 and 0", received, afterStop)
	}
}

func TestDistributorRestartGetsNoStalePackets(t *testing.T) {
	d := NewDistributor(NewPacketQueue(0), 1, zerolog.Nop())
	defer d.Close()

	l := &slowListener{delay: time.Millisecond}
	d.Add("slow", l, nil)
	d.Activate()
	for i := 0; i < 10; i++ {
		d.Dispatch(mustRadio(t))
	}
	d.Deactivate()
	d.Activate()
	d.Dispatch(mustRadio(t))
	d.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.received != 11 || l.afterStop != 0 {
		t.Errorf("received = %d, after Close = %d, want 11 and 0", l.received, l.afterStop)
	}
}

// ============================================================
// Worker Pool Tests
// ============================================================

func TestWorkerPoolRunsEveryTask(t *testing.T) {
	p := newWorkerPool(3)
	defer p.Close()

	var n atomic.Int64
	for i := 0; i < 1000; i++ {
		if !p.Submit(func() { n.Add(1) }) {
			t.Fatal("Submit rejected task on open pool")
		}
	}
	p.Wait()
	if got := n.Load(); got != 1000 {
		t.Errorf("ran %d tasks, want 1000", got)
	}
}

func TestWorkerPoolSurvivesPanics(t *testing.T) {
	p := newWorkerPool(1)
	defer p.Close()

	var ran atomic.Bool
	p.Submit(func() { panic("boom") })
	p.Submit(func() { ran.Store(true) })
	p.Wait()
	if !ran.Load() {
		t.Error("task after a panicking task did not run")
	}
}

func TestWorkerPoolCloseDrains(t *testing.T) {
	p := newWorkerPool(2)

	var n atomic.Int64
	for i := 0; i < 100; i++ {
		p.Submit(func() { n.Add(1) })
	}
	p.Close()
	if got := n.Load(); got != 100 {
		t.Errorf("ran %d tasks before Close returned, want 100", got)
	}
	if p.Submit(func() {}) {
		t.Error("Submit accepted task after Close")
	}
	p.Close()
}

func TestWorkerPoolSlowTaskDoesNotBlockOthers(t *testing.T) {
	p := newWorkerPool(2)
	defer p.Close()

	release := make(chan struct{})
	done := make(chan struct{})
	p.Submit(func() { <-release })
	p.Submit(func() { close(done) })

	waitFor(t, "second task", func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})
	close(release)
	p.Wait()
}

func TestWorkerPoolWaitWhileSubmitting(t *testing.T) {
	p := newWorkerPool(2)
	defer p.Close()

	const tasks = 5000
	var n atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < tasks; i++ {
			p.Submit(func() { n.Add(1) })
		}
	}()

	for i := 0; i < 50; i++ {
		p.Wait()
	}
	<-done
	p.Wait()

	if got := n.Load(); got != tasks {
		t.Errorf("ran %d tasks, want %d", got, tasks)
	}
}

// ============================================================
// Queue Tests
// ============================================================

func TestByteQueue(t *testing.T) {
	q := NewByteQueue()
	if _, ok := q.Poll(); ok {
		t.Error("Poll on empty queue returned a byte")
	}

	q.Push([]byte{1, 2, 3})
	q.Push(nil)
	if b, _ := q.Poll(); b != 1 {
		t.Errorf("Poll() = %d, want 1", b)
	}
	q.Unread([]byte{9, 1})
	q.Push([]byte{4})

	var got []byte
	for {
		b, ok := q.Poll()
		if !ok {
			break
		}
		got = append(got, b)
	}
	want := []byte{9, 1, 2, 3, 4}
	if string(got) != string(want) {
		t.Errorf("drained %v, want %v", got, want)
	}

	q.Push([]byte{1, 2})
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len() = %d after Clear", q.Len())
	}
}

func TestPacketQueue(t *testing.T) {
	q := NewPacketQueue(2)
	if q.Send(nil) {
		t.Error("Send accepted nil")
	}
	first := mustRadio(t)
	if !q.Send(first) || !q.Send(mustEvent(t)) {
		t.Fatal("Send rejected packet under limit")
	}
	if q.Send(mustRadio(t)) {
		t.Error("Send accepted packet over limit")
	}
	if m, ok := q.Poll(); !ok || m != esp3.Message(first) {
		t.Error("Poll did not return packets in FIFO order")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
	q.Clear()
	if _, ok := q.Poll(); ok {
		t.Error("Poll after Clear returned a packet")
	}
}
