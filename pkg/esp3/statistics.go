// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package esp3

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// StatsSnapshot is a point-in-time copy of the decoder statistics
type StatsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64 // frames that passed the header check
	ValidFrames     uint64
	PayloadErrors   uint64 // frames delivered with valid=false
	HeaderRejects   uint64
	TruncatedFrames uint64
	SkippedBytes    uint64 // bytes discarded while hunting for the sync byte
	ByType          map[PacketType]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// Errors returns the number of frames lost or delivered invalid
func (s StatsSnapshot) Errors() uint64 {
	return s.PayloadErrors + s.HeaderRejects + s.TruncatedFrames
}

// Statistics tracks decoder statistics and error rates. It is safe for
// concurrent use; the decoder updates it while other goroutines read it.
type Statistics struct {
	mu    sync.Mutex
	stats StatsSnapshot
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset()
	return s
}

func (s *Statistics) recordFrame(kind PacketType, valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalFrames++
	if valid {
		s.stats.ValidFrames++
	} else {
		s.stats.PayloadErrors++
	}
	if s.stats.ByType == nil {
		s.stats.ByType = make(map[PacketType]uint64)
	}
	s.stats.ByType[kind]++
	s.stats.LastUpdateTime = time.Now()
}

func (s *Statistics) recordHeaderReject() {
	s.mu.Lock()
	s.stats.HeaderRejects++
	s.stats.LastUpdateTime = time.Now()
	s.mu.Unlock()
}

func (s *Statistics) recordTruncated() {
	s.mu.Lock()
	s.stats.TruncatedFrames++
	s.stats.LastUpdateTime = time.Now()
	s.mu.Unlock()
}

func (s *Statistics) recordSkipped(n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.stats.SkippedBytes += uint64(n)
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters with the rates calculated
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.stats
	snap.ByType = make(map[PacketType]uint64, len(s.stats.ByType))
	for k, v := range s.stats.ByType {
		snap.ByType[k] = v
	}

	elapsed := time.Since(snap.StartTime).Seconds()
	if elapsed > 0 {
		snap.FrameRate = float64(snap.TotalFrames) / elapsed
		snap.ErrorRate = float64(snap.Errors()) / elapsed
	}
	return snap
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// String returns a formatted statistics summary
func (s StatsSnapshot) String() string {
	var validPercent, payloadPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		payloadPercent = float64(s.PayloadErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Total Frames:    %8d\n", s.TotalFrames)
	fmt.Fprintf(&b, "Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.PayloadErrors > 0 {
		fmt.Fprintf(&b, "Payload Errors:  %8d (%.1f%%)\n", s.PayloadErrors, payloadPercent)
	}
	if s.HeaderRejects > 0 {
		fmt.Fprintf(&b, "Header Rejects:  %8d\n", s.HeaderRejects)
	}
	if s.TruncatedFrames > 0 {
		fmt.Fprintf(&b, "Truncated:       %8d\n", s.TruncatedFrames)
	}
	if s.SkippedBytes > 0 {
		fmt.Fprintf(&b, "Skipped Bytes:   %8d\n", s.SkippedBytes)
	}

	if len(s.ByType) > 0 {
		kinds := make([]PacketType, 0, len(s.ByType))
		for k := range s.ByType {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-16s %6d\n", FormatPacketType(k)+":", s.ByType[k])
		}
	}

	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	s.mu.Lock()
	s.stats = StatsSnapshot{
		StartTime:      now,
		LastUpdateTime: now,
		ByType:         make(map[PacketType]uint64),
	}
	s.mu.Unlock()
}
