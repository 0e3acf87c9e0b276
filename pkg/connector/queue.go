// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"sync"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

// ByteQueue is the inbound byte queue between the transport read loop and
// the decoder. It is safe for concurrent use.
type ByteQueue struct {
	mu  sync.Mutex
	buf []byte
}

// NewByteQueue creates an empty byte queue
func NewByteQueue() *ByteQueue {
	return &ByteQueue{}
}

// Push appends bytes to the back of the queue
func (q *ByteQueue) Push(b []byte) {
	if len(b) == 0 {
		return
	}
	q.mu.Lock()
	q.buf = append(q.buf, b...)
	q.mu.Unlock()
}

// Poll removes and returns the byte at the front of the queue
func (q *ByteQueue) Poll() (byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) == 0 {
		return 0, false
	}
	b := q.buf[0]
	q.buf = q.buf[1:]
	if len(q.buf) == 0 {
		q.buf = nil
	}
	return b, true
}

// Unread puts bytes back at the front of the queue, ahead of anything pushed
// since they were polled
func (q *ByteQueue) Unread(b []byte) {
	if len(b) == 0 {
		return
	}
	q.mu.Lock()
	buf := make([]byte, 0, len(b)+len(q.buf))
	buf = append(buf, b...)
	q.buf = append(buf, q.buf...)
	q.mu.Unlock()
}

// Len returns the number of queued bytes
func (q *ByteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Clear drops all queued bytes
func (q *ByteQueue) Clear() {
	q.mu.Lock()
	q.buf = nil
	q.mu.Unlock()
}

// PacketQueue is the outbound packet queue between Connector.SendPacket and
// the transport write loop. It is safe for concurrent use and implements
// Outbox.
type PacketQueue struct {
	mu      sync.Mutex
	packets []esp3.Message
	limit   int
}

// NewPacketQueue creates a packet queue holding at most limit packets;
// limit <= 0 means unbounded
func NewPacketQueue(limit int) *PacketQueue {
	return &PacketQueue{limit: limit}
}

// Send appends a packet. It returns false for nil packets or when the queue
// is full.
func (q *PacketQueue) Send(m esp3.Message) bool {
	if m == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.packets) >= q.limit {
		return false
	}
	q.packets = append(q.packets, m)
	return true
}

// Poll removes and returns the packet at the front of the queue
func (q *PacketQueue) Poll() (esp3.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.packets) == 0 {
		return nil, false
	}
	m := q.packets[0]
	q.packets[0] = nil
	q.packets = q.packets[1:]
	return m, true
}

// Len returns the number of queued packets
func (q *PacketQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}

// Clear drops all queued packets
func (q *PacketQueue) Clear() {
	q.mu.Lock()
	q.packets = nil
	q.mu.Unlock()
}

var (
	_ esp3.ByteSource = (*ByteQueue)(nil)
	_ esp3.Unreader   = (*ByteQueue)(nil)
	_ Outbox          = (*PacketQueue)(nil)
)
