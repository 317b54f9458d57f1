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

package enginesched

import (
	"container/heap"
	"log/slog"
	"sync/atomic"

	"github.com/scosc/core/metrics"
	"github.com/scosc/core/osc"
)

// RingReader is the subset of ringbuf.Ring the intake phase needs to drain
// inbound frames.
type RingReader interface {
	DrainInto(consumer func([]byte) bool) int
}

// Dispatcher applies a single OSC frame to the synthesis engine. It is
// called both for immediate frames during intake and for due frames during
// release.
type Dispatcher interface {
	Dispatch(payload []byte) error
}

// SentinelAddress is the reserved address the purge protocol (J) writes to
// ring A to mark "everything submitted before this point must be dropped".
// It is never a real synthesis command and never reaches Dispatcher.
const SentinelAddress = "/scosc/_purge"

// Scheduler is the bounded, non-allocating engine-side scheduler described
// in spec.md §4.G: a fixed-slot pool backs a fixed-capacity min-heap, so
// queued bundle bytes are never copied into Go-allocated memory. Each
// queued bundle does allocate one small heap entry (pendingEntry). Methods are
// not safe for concurrent use; a real audio callback calls them from a
// single thread.
type Scheduler struct {
	pool *slotPool
	h    entryHeap
	seq  uint64

	m     *metrics.Set
	debug func(msg string, args ...any)

	purgeHook func()
}

// New constructs a Scheduler with capacity slots of slotBytes bytes each.
func New(capacity, slotBytes int, m *metrics.Set) *Scheduler {
	s := &Scheduler{
		pool: newSlotPool(capacity, slotBytes),
		h:    make(entryHeap, 0, capacity),
		m:    m,
	}
	s.debug = func(msg string, args ...any) { slog.Warn(msg, args...) }
	return s
}

// SetDebugSink overrides where hard-failure diagnostics are written; the
// default logs via log/slog. Engine.Init points it at the debug ring (H).
func (s *Scheduler) SetDebugSink(f func(msg string, args ...any)) {
	s.debug = f
}

// Depth returns the number of bundles currently held in the heap.
func (s *Scheduler) Depth() int { return len(s.h) }

// SetPurgeHook registers the callback invoked, synchronously from within
// Intake, the instant a purge sentinel (J) is observed — after the heap has
// already been cleared. Typically sets the engine-side half of J's
// two-sided acknowledgement flag.
func (s *Scheduler) SetPurgeHook(f func()) { s.purgeHook = f }

// Intake drains ring, classifying each frame per spec.md §4.G: a frame that
// is not a bundle, or is an immediate bundle, dispatches straight through;
// any other (future) bundle is copied into a pool slot and pushed onto the
// heap. A future bundle larger than one slot (the direct writer passes such
// bundles straight to the ring) and a full slot pool are both hard-failure
// paths — the frame is dropped, EngineHeapDropped is incremented, and a
// debug entry is emitted.
//
// Intake stops early if dispatch returns an error, returning it alongside
// the count of frames processed before the failure.
func (s *Scheduler) Intake(ring RingReader, dispatch Dispatcher) (processed int, err error) {
	processed = ring.DrainInto(func(frame []byte) bool {
		if addr, ok := osc.PeekAddress(frame); ok && addr == SentinelAddress {
			s.PurgeSentinel()
			if s.purgeHook != nil {
				s.purgeHook()
			}
			return true
		}
		tag, isBundle := osc.PeekTimetag(frame)
		if !isBundle || tag.IsImmediate() {
			if dispErr := dispatch.Dispatch(frame); dispErr != nil {
				err = dispErr
				return false
			}
			return true
		}
		s.enqueue(tag, frame)
		return true
	})
	return processed, err
}

func (s *Scheduler) enqueue(tag osc.Timetag, frame []byte) {
	if len(frame) > s.pool.slotBytes {
		s.recordDrop(len(frame), "frame exceeds engine scheduler slot size")
		return
	}
	idx, buf, ok := s.pool.alloc()
	if !ok {
		s.recordDrop(len(frame), "engine scheduler heap is full")
		return
	}
	n := copy(buf, frame)
	s.seq++
	heap.Push(&s.h, &pendingEntry{
		deadlineNTP: tag.NTPSeconds(),
		sequence:    s.seq,
		slot:        idx,
		length:      n,
	})
	s.publishDepth()
}

func (s *Scheduler) recordDrop(frameBytes int, reason string) {
	atomic.AddUint64(&s.m.EngineHeapDropped, 1)
	s.debug("enginesched: dropped bundle", "reason", reason, "bytes", frameBytes)
}

// Release pops and dispatches every heap entry whose deadline lies before
// blockEndNTP, i.e. within or before the block starting at blockStartNTP,
// per spec.md §4.G's release phase. Entries already past blockStartNTP are
// dispatched immediately (sample 0 of the block, in real-time terms) and
// counted as late. Dispatch order follows heap order: earliest deadline
// first, ties by arrival.
func (s *Scheduler) Release(blockStartNTP, blockEndNTP float64, dispatch Dispatcher) (released int, err error) {
	for len(s.h) > 0 {
		top := s.h[0]
		if top.deadlineNTP >= blockEndNTP {
			return released, nil
		}
		heap.Pop(&s.h)
		s.publishDepth()

		buf := s.pool.slice(top.slot)[:top.length]
		late := top.deadlineNTP < blockStartNTP
		dispErr := dispatch.Dispatch(buf)
		s.pool.free(top.slot)
		if dispErr != nil {
			return released, dispErr
		}
		released++
		if late {
			atomic.AddUint64(&s.m.EngineLate, 1)
		}
	}
	return released, nil
}

// PurgeSentinel is the engine-side half of the purge protocol (J): it clears
// the heap unconditionally, freeing every held slot. Intake calls it the
// moment it drains the purge sentinel frame, before any later frame.
func (s *Scheduler) PurgeSentinel() {
	for _, e := range s.h {
		s.pool.free(e.slot)
	}
	s.h = s.h[:0]
	s.publishDepth()
}

func (s *Scheduler) publishDepth() {
	depth := uint32(len(s.h))
	atomic.StoreUint32(&s.m.EngineHeapDepth, depth)
	for {
		peak := atomic.LoadUint32(&s.m.EngineHeapPeak)
		if depth <= peak || atomic.CompareAndSwapUint32(&s.m.EngineHeapPeak, peak, depth) {
			return
		}
	}
}
