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

package dispatch

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scosc/core/metrics"
	"github.com/scosc/core/ntpclock"
	"github.com/scosc/core/ringbuf"
)

// compactThreshold is the fraction of cancelled-but-unpopped entries above
// which the heap is compacted eagerly rather than waiting for them to
// surface at pop time, per spec.md §4.F.
const compactThreshold = 0.25

// retryMaxAttempts bounds how many ticks a ring-backpressured release is
// retried before being dropped and counted as a retry failure.
const retryMaxAttempts = 8

// CancelSelector selects prescheduler entries to cancel. The zero value
// selects nothing; use MatchAll for the "all" selector.
type CancelSelector struct {
	SessionID    uint32
	HasSession   bool
	Tag          string
	HasTag       bool
	MatchAll     bool
}

func (s CancelSelector) matches(e *scheduledEvent) bool {
	if s.MatchAll {
		return true
	}
	if s.HasSession && e.sessionID != s.SessionID {
		return false
	}
	if s.HasTag && e.tag != s.Tag {
		return false
	}
	return s.HasSession || s.HasTag
}

// Prescheduler holds a min-heap of bundles awaiting their NTP deadline on a
// dedicated ticking goroutine, releasing each to the inbound ring roughly
// dispatchLead before it fires. It is the auxiliary-context analog of
// gopool's ticker-driven worker: a single background goroutine, panics
// routed through a settable handler instead of crashing the process.
type Prescheduler struct {
	ring  RingWriter
	clock *ntpclock.Clock
	m     *metrics.Set

	capacity     int
	dispatchLead float64
	pollInterval time.Duration

	mu      sync.Mutex
	h       eventHeap
	cancels int
	seq     uint64
	retry   []*scheduledEvent

	retryCapacity int

	panicHandler func(ctx context.Context, r any)

	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

// NewPrescheduler constructs a Prescheduler bound to ring, not yet started.
func NewPrescheduler(ring RingWriter, clock *ntpclock.Clock, m *metrics.Set, capacity int, dispatchLeadSeconds float64, pollInterval time.Duration) *Prescheduler {
	return &Prescheduler{
		ring:          ring,
		clock:         clock,
		m:             m,
		capacity:      capacity,
		dispatchLead:  dispatchLeadSeconds,
		pollInterval:  pollInterval,
		retryCapacity: 1024,
		panicHandler: func(_ context.Context, r any) {
			slog.Error("dispatch: prescheduler tick panicked", "recovered", r, "stack", string(debug.Stack()))
		},
	}
}

// SetPanicHandler overrides the default log-and-continue panic handler for
// the tick goroutine.
func (p *Prescheduler) SetPanicHandler(f func(ctx context.Context, r any)) {
	p.panicHandler = f
}

// Start launches the tick goroutine. Start/Stop are not safe to call
// concurrently with each other.
func (p *Prescheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Stop signals the tick goroutine to exit and waits for it to do so.
func (p *Prescheduler) Stop() {
	if p.closed.Swap(true) {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
}

func (p *Prescheduler) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.safeTick(ctx)
		}
	}
}

func (p *Prescheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.panicHandler(ctx, r)
		}
	}()
	p.tick()
}

// Submit enqueues a bundle for release at deadlineNTP. payload is copied,
// per spec.md §3 ("Payload is owned (copied on submission)").
func (p *Prescheduler) Submit(deadlineNTP float64, sessionID uint32, tag string, payload []byte) error {
	owned := make([]byte, len(payload))
	copy(owned, payload)

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.h) >= p.capacity {
		if !p.evictOneCancelledLocked() {
			return ErrPreschedulerFull
		}
	}

	p.seq++
	heap.Push(&p.h, &scheduledEvent{
		deadlineNTP: deadlineNTP,
		sequence:    p.seq,
		sessionID:   sessionID,
		tag:         tag,
		payload:     owned,
	})
	p.publishPendingLocked()
	return nil
}

// evictOneCancelledLocked removes the first cancelled entry found, freeing
// one capacity slot. Caller holds p.mu.
func (p *Prescheduler) evictOneCancelledLocked() bool {
	for i, e := range p.h {
		if e.cancelled {
			heap.Remove(&p.h, i)
			p.cancels--
			return true
		}
	}
	return false
}

// Cancel marks every entry matching sel as cancelled, to be skipped (not
// written) when it would otherwise be released, and returns the count
// newly cancelled.
func (p *Prescheduler) Cancel(sel CancelSelector) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.h {
		if !e.cancelled && sel.matches(e) {
			e.cancelled = true
			n++
		}
	}
	p.cancels += n
	if n > 0 {
		atomic.AddUint64(&p.m.PreschedulerCancelled, uint64(n))
		p.maybeCompactLocked()
	}
	return n
}

// CancelAll cancels every pending entry.
func (p *Prescheduler) CancelAll() int {
	return p.Cancel(CancelSelector{MatchAll: true})
}

// maybeCompactLocked rebuilds the heap without cancelled entries once they
// exceed compactThreshold of the total, per spec.md §4.F.
func (p *Prescheduler) maybeCompactLocked() {
	if len(p.h) == 0 {
		return
	}
	if float64(p.cancels)/float64(len(p.h)) < compactThreshold {
		return
	}
	kept := make(eventHeap, 0, len(p.h)-p.cancels)
	for _, e := range p.h {
		if !e.cancelled {
			kept = append(kept, e)
		}
	}
	p.h = kept
	heap.Init(&p.h)
	p.cancels = 0
}

// Purge drops every entry — cancelled or not — used by the purge protocol
// (J) to guarantee the heap is empty before acknowledging.
func (p *Prescheduler) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.h = p.h[:0]
	p.retry = p.retry[:0]
	p.cancels = 0
	p.publishPendingLocked()
}

// Pending returns the current heap depth, including cancelled-but-unpopped
// entries, matching the metrics field's "current heap depth" meaning.
func (p *Prescheduler) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.h)
}

func (p *Prescheduler) publishPendingLocked() {
	depth := uint32(len(p.h))
	atomic.StoreUint32(&p.m.PreschedulerPending, depth)
	for {
		peak := atomic.LoadUint32(&p.m.PreschedulerPeak)
		if depth <= peak || atomic.CompareAndSwapUint32(&p.m.PreschedulerPeak, peak, depth) {
			return
		}
	}
}

// tick runs one release pass: first retries anything held by prior
// backpressure, then releases every due, non-cancelled entry.
func (p *Prescheduler) tick() {
	now := p.clock.NowNTP()

	p.mu.Lock()
	retry := p.retry
	p.retry = nil
	p.mu.Unlock()

	var stillRetrying []*scheduledEvent
	for _, e := range retry {
		if !p.releaseOrRetry(e, now) {
			stillRetrying = append(stillRetrying, e)
		}
	}

	for {
		p.mu.Lock()
		if len(p.h) == 0 {
			p.mu.Unlock()
			break
		}
		top := p.h[0]
		if top.cancelled {
			heap.Pop(&p.h)
			p.cancels--
			p.publishPendingLocked()
			p.mu.Unlock()
			continue
		}
		if top.deadlineNTP-now > p.dispatchLead {
			p.mu.Unlock()
			break
		}
		heap.Pop(&p.h)
		p.publishPendingLocked()
		p.mu.Unlock()

		if !p.releaseOrRetry(top, now) {
			stillRetrying = append(stillRetrying, top)
		}
	}

	if len(stillRetrying) > 0 {
		p.mu.Lock()
		p.retry = append(p.retry, stillRetrying...)
		if len(p.retry) > p.retryCapacity {
			dropped := p.retry[:len(p.retry)-p.retryCapacity]
			p.retry = p.retry[len(p.retry)-p.retryCapacity:]
			atomic.AddUint64(&p.m.PreschedulerRetryFailed, uint64(len(dropped)))
		}
		p.mu.Unlock()
	}
}

// releaseOrRetry writes e to the ring. On success it records dispatch
// metrics and returns true. On ring backpressure it bumps the retry
// counter and returns false unless attempts are exhausted, in which case
// it is dropped and counted as a retry failure (returns true: caller must
// not retry it further).
func (p *Prescheduler) releaseOrRetry(e *scheduledEvent, now float64) bool {
	_, err := p.ring.Write(e.payload)
	if err == nil {
		atomic.AddUint64(&p.m.PreschedulerDispatched, 1)
		headroom := e.deadlineNTP - now
		p.m.ObserveHeadroom(headroom)
		if headroom < 0 {
			atomic.AddUint64(&p.m.PreschedulerLate, 1)
		}
		return true
	}
	if !errors.Is(err, ringbuf.ErrFull) {
		// Not recoverable by retry (e.g. ErrFrameTooLarge); drop and count.
		atomic.AddUint64(&p.m.PreschedulerRetryFailed, 1)
		return true
	}
	e.retries++
	if e.retries > retryMaxAttempts {
		atomic.AddUint64(&p.m.PreschedulerRetryFailed, 1)
		return true
	}
	return false
}
