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
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/scosc/core/idmap"
	"github.com/scosc/core/metrics"
	"github.com/scosc/core/ntpclock"
	"github.com/scosc/core/osc"
	"github.com/scosc/core/ringbuf"
)

// DirectWriter implements the classify-and-write fast path (E): messages
// and immediate bundles go straight to the ring; future bundles go to the
// ring only when close enough to their deadline or too large for the
// engine-side scheduler's slots, otherwise they are handed to F.
type DirectWriter struct {
	ring  RingWriter
	idMap *idmap.Map
	clock *ntpclock.Clock
	m     *metrics.Set
	enc   osc.Encoder

	lookaheadSeconds float64
	slotBytes        int

	pre *Prescheduler
}

// NewDirectWriter constructs a DirectWriter. SetPrescheduler must be called
// before Send sees any non-immediate future bundle whose headroom exceeds
// lookaheadSeconds.
func NewDirectWriter(ring RingWriter, idMap *idmap.Map, clock *ntpclock.Clock, m *metrics.Set, identifierTag byte, lookaheadSeconds float64, slotBytes int) *DirectWriter {
	return &DirectWriter{
		ring:             ring,
		idMap:            idMap,
		clock:            clock,
		m:                m,
		enc:              osc.Encoder{IDTag: identifierTag},
		lookaheadSeconds: lookaheadSeconds,
		slotBytes:        slotBytes,
	}
}

// SetPrescheduler wires the prescheduler this writer hands long-horizon
// bundles off to.
func (d *DirectWriter) SetPrescheduler(p *Prescheduler) { d.pre = p }

// Send classifies and dispatches p, per spec.md §4.E. sessionID/tag are
// recorded only for bundles that end up on the prescheduler, where they
// back cancellation.
func (d *DirectWriter) Send(p osc.Packet, sessionID uint32, tag string) error {
	switch v := p.(type) {
	case *osc.Message:
		d.idMap.RewriteOutbound(v)
		return d.writeNow(v, false)
	case *osc.Bundle:
		return d.sendBundle(v, sessionID, tag)
	default:
		return fmt.Errorf("dispatch: unsupported packet type %T", p)
	}
}

func (d *DirectWriter) sendBundle(b *osc.Bundle, sessionID uint32, tag string) error {
	d.idMap.RewriteOutbound(b)

	if b.IsImmediate() {
		return d.writeNow(b, false)
	}

	targetNTP := b.Time.NTPSeconds()
	now := d.clock.NowNTP()
	headroom := targetNTP - now

	scratch, payloadLen, err := d.encode(b)
	if err != nil {
		return err
	}
	defer mcache.Free(scratch)
	payload := scratch[:payloadLen]

	if headroom <= d.lookaheadSeconds || payloadLen > d.slotBytes {
		return d.writeBytesNow(payload, headroom < 0)
	}

	if d.pre == nil {
		return ErrNoPrescheduler
	}
	return d.pre.Submit(targetNTP, sessionID, tag, payload)
}

// writeNow encodes p with the fast path into scratch and writes it through,
// reporting backpressure/too-large distinctly.
func (d *DirectWriter) writeNow(p osc.Packet, late bool) error {
	scratch, n, err := d.encode(p)
	if err != nil {
		return err
	}
	defer mcache.Free(scratch)
	return d.writeBytesNow(scratch[:n], late)
}

func (d *DirectWriter) writeBytesNow(payload []byte, late bool) error {
	_, err := d.ring.Write(payload)
	if err != nil {
		if errors.Is(err, ringbuf.ErrFull) {
			return ErrBackpressure
		}
		return ErrTooLarge
	}
	if late {
		atomic.AddUint64(&d.m.EngineLate, 1)
	}
	return nil
}

// encode fast-encodes p into an mcache-pooled scratch buffer sized exactly
// to fit, returning the buffer and the number of valid bytes. The caller
// must mcache.Free the buffer once it has been copied into the ring (or
// handed to the prescheduler, which takes its own copy in Submit).
func (d *DirectWriter) encode(p osc.Packet) ([]byte, int, error) {
	switch v := p.(type) {
	case *osc.Message:
		n := d.enc.MessageLen(v)
		buf := mcache.Malloc(n)
		written, err := d.enc.EncodeFastMessage(buf, v)
		if err != nil {
			mcache.Free(buf)
			return nil, 0, err
		}
		return buf, written, nil
	case *osc.Bundle:
		if len(v.Elements) == 1 {
			if msg, ok := v.Elements[0].(*osc.Message); ok {
				n := d.enc.BundleLen(msg)
				buf := mcache.Malloc(n)
				written, err := d.enc.EncodeFastBundle(buf, v.Time, msg)
				if err != nil {
					mcache.Free(buf)
					return nil, 0, err
				}
				return buf, written, nil
			}
		}
		general, err := d.enc.EncodeBundle(v)
		if err != nil {
			return nil, 0, err
		}
		buf := mcache.Malloc(len(general))
		copy(buf, general)
		return buf, len(general), nil
	default:
		return nil, 0, fmt.Errorf("dispatch: unsupported packet type %T", p)
	}
}
