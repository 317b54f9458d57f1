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

package replypath

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/scosc/core/idmap"
	"github.com/scosc/core/metrics"
	"github.com/scosc/core/osc"
	"github.com/scosc/core/ringbuf"
)

// RingReader is the subset of ringbuf.Ring the auxiliary reader needs: pull
// the next frame, and resynchronize after a corrupt one.
type RingReader interface {
	Read() ([]byte, error)
	RecoverCorrupt() bool
}

// ReplyListener receives decoded, inverse-rewritten engine replies.
type ReplyListener interface {
	OnReply(p osc.Packet)
}

// DebugListener receives raw debug-ring diagnostic frames.
type DebugListener interface {
	OnDebug(payload []byte)
}

// Reader is the auxiliary, non-real-time side of the reply path: it drains
// a sequenced ring on its own goroutine (timer-polled here; a condition
// variable would serve equally and is a drop-in swap of the wait inside
// run), tracks sequence gaps as loss, and forwards each frame's payload to
// onFrame. Corruption (a length prefix the ring itself could not satisfy)
// is resynchronized via RingReader.RecoverCorrupt and also counted as loss.
type Reader struct {
	ring RingReader

	pollInterval time.Duration
	onFrame      func(payload []byte)
	lossCounter  *uint64
	byteCounter  *uint64

	haveSeq bool
	lastSeq uint32

	panicHandler func(ctx context.Context, r any)

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

func newReader(ring RingReader, pollInterval time.Duration, lossCounter, byteCounter *uint64, onFrame func([]byte)) *Reader {
	return &Reader{
		ring:         ring,
		pollInterval: pollInterval,
		onFrame:      onFrame,
		lossCounter:  lossCounter,
		byteCounter:  byteCounter,
		wake:         make(chan struct{}, 1),
		panicHandler: func(_ context.Context, r any) {
			slog.Error("replypath: reader drain panicked", "recovered", r, "stack", string(debug.Stack()))
		},
	}
}

// NewReplyReader builds a Reader for the outbound reply ring: frames are
// decoded through osc and inverse-rewritten through idMap before reaching
// listener.
func NewReplyReader(ring RingReader, idMap *idmap.Map, m *metrics.Set, identifierTag byte, pollInterval time.Duration, listener ReplyListener) *Reader {
	dec := osc.Decoder{IDTag: identifierTag}
	return newReader(ring, pollInterval, &m.LossDetectedReplies, &m.ReplyBytesReceived, func(payload []byte) {
		p, err := dec.Decode(payload)
		if err != nil {
			return
		}
		idMap.RewriteInbound(p)
		listener.OnReply(p)
	})
}

// NewDebugReader builds a Reader for the debug ring: frames are forwarded
// to listener as opaque bytes, no OSC decoding or rewriting involved.
func NewDebugReader(ring RingReader, m *metrics.Set, pollInterval time.Duration, listener DebugListener) *Reader {
	return newReader(ring, pollInterval, nil, &m.DebugBytes, func(payload []byte) {
		listener.OnDebug(payload)
	})
}

// SetPanicHandler overrides the default log-and-continue panic handler.
func (r *Reader) SetPanicHandler(f func(ctx context.Context, r any)) {
	r.panicHandler = f
}

// Start launches the drain goroutine.
func (r *Reader) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx)
}

// Stop signals the drain goroutine to exit and waits for it.
func (r *Reader) Stop() {
	if r.closed.Swap(true) {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

// Wake nudges the reader to drain immediately rather than waiting out the
// rest of its poll interval, the auxiliary-context analog of signaling a
// condition variable.
func (r *Reader) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reader) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.safeDrain(ctx)
		case <-r.wake:
			r.safeDrain(ctx)
		}
	}
}

func (r *Reader) safeDrain(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.panicHandler(ctx, rec)
		}
	}()
	r.drainAll()
}

// drainAll reads every currently-available frame, per frame: unwraps the
// sequence prefix, records any gap as loss, and hands the remaining bytes
// to onFrame. ErrCorrupt is treated as one lost frame plus a resync.
func (r *Reader) drainAll() {
	for {
		payload, err := r.ring.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrCorrupt) {
				r.countLoss(1)
				if !r.ring.RecoverCorrupt() {
					return
				}
				continue
			}
			return
		}
		if len(payload) < seqPrefixSize {
			continue
		}
		seq := binary.BigEndian.Uint32(payload)
		body := payload[seqPrefixSize:]

		if r.haveSeq {
			gap := seq - r.lastSeq
			if gap != 1 {
				r.countLoss(uint64(gap - 1))
			}
		}
		r.haveSeq = true
		r.lastSeq = seq

		if r.byteCounter != nil {
			atomic.AddUint64(r.byteCounter, uint64(len(body)))
		}
		r.onFrame(body)
	}
}

func (r *Reader) countLoss(n uint64) {
	if r.lossCounter != nil {
		atomic.AddUint64(r.lossCounter, n)
	}
}

