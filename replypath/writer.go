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

// Package replypath carries engine replies and debug diagnostics from the
// audio thread back out to the application: a sequenced writer side (H)
// and an auxiliary reader that drains, decodes, inverse-rewrites, and
// delivers them.
package replypath

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/bytedance/gopkg/lang/mcache"
)

const seqPrefixSize = 4

// RingWriter is the subset of ringbuf.Ring the audio-thread writer needs.
type RingWriter interface {
	Write(payload []byte) (int, error)
}

// SequencedWriter prefixes every frame it writes with a monotonically
// increasing 32-bit sequence number, letting the reader on the other end
// detect gaps. One SequencedWriter exists per ring (outbound replies,
// debug diagnostics each get their own sequence space per spec.md §4.H).
type SequencedWriter struct {
	ring RingWriter
	seq  uint32 // atomic
}

// NewSequencedWriter wraps ring with sequence-number framing.
func NewSequencedWriter(ring RingWriter) *SequencedWriter {
	return &SequencedWriter{ring: ring}
}

// Write appends the next sequence number ahead of payload and writes the
// result to the ring.
func (w *SequencedWriter) Write(payload []byte) error {
	seq := atomic.AddUint32(&w.seq, 1)
	frame := mcache.Malloc(seqPrefixSize + len(payload))
	defer mcache.Free(frame)
	binary.BigEndian.PutUint32(frame, seq)
	copy(frame[seqPrefixSize:], payload)
	_, err := w.ring.Write(frame)
	return err
}
