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

// Package purge implements the coordinated, acknowledged hard-stop
// described in spec.md §4.J: a caller-side cancel of the prescheduler's
// heap plus a sentinel-delimited clear of the engine-side heap, both
// acknowledgements required before the call resolves.
package purge

import (
	"context"
	"sync"
	"time"

	"github.com/scosc/core/enginesched"
	"github.com/scosc/core/osc"
)

// DefaultTimeout bounds Purge per spec.md §5's "bounded at 2 s
// (implementation-defined timeout)".
const DefaultTimeout = 2 * time.Second

// Canceller is F's cancel-everything operation.
type Canceller interface {
	CancelAll() int
}

// SentinelSender writes the purge sentinel to the inbound ring; satisfied
// by dispatch.DirectWriter.
type SentinelSender interface {
	Send(p osc.Packet, sessionID uint32, tag string) error
}

// EngineHook lets Purge learn the instant the engine-side scheduler (G)
// has observed the sentinel and cleared its heap; satisfied by
// enginesched.Scheduler.
type EngineHook interface {
	SetPurgeHook(f func())
}

// Coordinator drives the two-sided purge handshake.
type Coordinator struct {
	pre     Canceller
	writer  SentinelSender
	engine  EngineHook
	timeout time.Duration
}

// NewCoordinator builds a Coordinator over the prescheduler (F), the
// direct-write path (E) used to deliver the sentinel, and the engine-side
// scheduler (G) whose purge hook signals the second acknowledgement.
func NewCoordinator(pre Canceller, writer SentinelSender, engine EngineHook) *Coordinator {
	return &Coordinator{pre: pre, writer: writer, engine: engine, timeout: DefaultTimeout}
}

// Purge runs the sequence in spec.md §4.J:
//  1. Cancel everything pending in F (synchronous; its return is F's ack).
//  2. Write the sentinel message directly to ring A.
//  3. Anything submitted before the sentinel is necessarily drained ahead
//     of it by the engine's own intake loop, since A is strict FIFO — no
//     separate caller-side drain is needed in this single-process port.
//  4. Wait for G to observe the sentinel (its purge hook firing), bounded
//     by Coordinator's timeout composed with ctx.
//
// Purge is not safe to call concurrently with itself: a second call before
// the first's acknowledgement arrives would overwrite the first's hook
// registration.
func (c *Coordinator) Purge(ctx context.Context) error {
	c.pre.CancelAll()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	acked := make(chan struct{})
	var once sync.Once
	c.engine.SetPurgeHook(func() { once.Do(func() { close(acked) }) })

	if err := c.writer.Send(&osc.Message{Address: enginesched.SentinelAddress}, 0, ""); err != nil {
		return err
	}

	select {
	case <-acked:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
