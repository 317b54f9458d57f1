// Copyright 2024 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds the core's counters. Each counter has exactly one
// designated writer (single-producer, multi-consumer); readers take a
// Snapshot at any time without coordinating with the writers.
package metrics

import (
	"math"
	"sync/atomic"
)

// MinHeadroomUnset is the distinguished sentinel for Set.MinHeadroomNTP
// before the prescheduler has dispatched anything.
const MinHeadroomUnset = math.MaxInt64

// Set is the live, per-process counter block. Every field is written by
// exactly one component (named in the comment) and may be read by any
// number of others; there is no cross-component locking, matching
// spec.md §5's "Metrics counters are shared but per-counter SPMC" rule.
type Set struct {
	MessagesSent      uint64 // K: application submissions accepted
	MessagesProcessed uint64 // audio thread: messages actually executed

	PreschedulerPending    uint32 // F: current heap depth
	PreschedulerPeak       uint32 // F: heap depth high-water mark
	PreschedulerDispatched  uint64 // F: bundles released to the ring
	PreschedulerCancelled   uint64 // F: bundles cancelled before release
	PreschedulerLate        uint64 // F: released with deadline already past
	PreschedulerRetryFailed uint64 // F: dropped after exceeding the ring-backpressure retry limit

	EngineHeapDepth   uint32 // audio thread: current in-engine heap depth
	EngineHeapPeak     uint32 // audio thread: in-engine heap depth high-water mark
	EngineHeapDropped uint64 // audio thread: bundles dropped, slot pool full or frame larger than a slot
	EngineLate        uint64 // audio thread: direct-write bundle already past deadline on arrival

	ReplyBytesReceived  uint64 // auxiliary: bytes read off the outbound ring
	LossDetectedReplies uint64 // auxiliary: sequence gaps observed on the outbound ring
	DebugBytes          uint64 // auxiliary: bytes read off the debug ring

	minHeadroomNTPBits uint64 // F: atomic bit-pattern of the minimum observed headroom seconds
}

// NewSet returns a Set with MinHeadroomNTP initialised to its unset sentinel.
func NewSet() *Set {
	s := &Set{}
	atomic.StoreUint64(&s.minHeadroomNTPBits, math.Float64bits(MinHeadroomUnset))
	return s
}

// ObserveHeadroom records a dispatch's headroom (dispatched_ntp -
// actual_write_ntp) into the sliding minimum, per spec.md §4.F.
func (s *Set) ObserveHeadroom(headroomSeconds float64) {
	for {
		old := atomic.LoadUint64(&s.minHeadroomNTPBits)
		oldVal := math.Float64frombits(old)
		if oldVal != MinHeadroomUnset && oldVal <= headroomSeconds {
			return
		}
		if atomic.CompareAndSwapUint64(&s.minHeadroomNTPBits, old, math.Float64bits(headroomSeconds)) {
			return
		}
	}
}

// MinHeadroomNTP returns the minimum observed dispatch headroom in seconds,
// or MinHeadroomUnset if no dispatch has been observed yet.
func (s *Set) MinHeadroomNTP() float64 {
	return math.Float64frombits(atomic.LoadUint64(&s.minHeadroomNTPBits))
}

// Snapshot is a fixed-layout, point-in-time copy of Set, safe to pass
// across goroutines and compare in tests.
type Snapshot struct {
	MessagesSent      uint64
	MessagesProcessed uint64

	PreschedulerPending    uint32
	PreschedulerPeak       uint32
	PreschedulerDispatched  uint64
	PreschedulerCancelled   uint64
	PreschedulerLate        uint64
	PreschedulerRetryFailed uint64

	EngineHeapDepth   uint32
	EngineHeapPeak    uint32
	EngineHeapDropped uint64
	EngineLate        uint64

	ReplyBytesReceived  uint64
	LossDetectedReplies uint64
	DebugBytes          uint64

	MinHeadroomNTP float64

	InboundRingPeak  uint32
	OutboundRingPeak uint32
	DebugRingPeak    uint32
}

// Snapshot reads every counter via an atomic load. Because counters are
// read independently (no shared lock), the result is not a single
// linearisation point, only "close enough for observability" — the same
// guarantee spec.md §3 asks for ("readable synchronously").
func (s *Set) Snapshot() Snapshot {
	return Snapshot{
		MessagesSent:      atomic.LoadUint64(&s.MessagesSent),
		MessagesProcessed: atomic.LoadUint64(&s.MessagesProcessed),

		PreschedulerPending:    atomic.LoadUint32(&s.PreschedulerPending),
		PreschedulerPeak:       atomic.LoadUint32(&s.PreschedulerPeak),
		PreschedulerDispatched:  atomic.LoadUint64(&s.PreschedulerDispatched),
		PreschedulerCancelled:   atomic.LoadUint64(&s.PreschedulerCancelled),
		PreschedulerLate:        atomic.LoadUint64(&s.PreschedulerLate),
		PreschedulerRetryFailed: atomic.LoadUint64(&s.PreschedulerRetryFailed),

		EngineHeapDepth:   atomic.LoadUint32(&s.EngineHeapDepth),
		EngineHeapPeak:    atomic.LoadUint32(&s.EngineHeapPeak),
		EngineHeapDropped: atomic.LoadUint64(&s.EngineHeapDropped),
		EngineLate:        atomic.LoadUint64(&s.EngineLate),

		ReplyBytesReceived:  atomic.LoadUint64(&s.ReplyBytesReceived),
		LossDetectedReplies: atomic.LoadUint64(&s.LossDetectedReplies),
		DebugBytes:          atomic.LoadUint64(&s.DebugBytes),

		MinHeadroomNTP: s.MinHeadroomNTP(),
	}
}
