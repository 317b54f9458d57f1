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

// Package osclog produces the authoritative, ordered record of every OSC
// byte the engine actually consumed from the inbound ring, per spec.md
// §4.I, by tapping the real consumer's drain rather than maintaining a
// second reader over a single-consumer ring.
package osclog

import "sync/atomic"

// Entry is one logged frame.
type Entry struct {
	Bytes    []byte
	SourceID uint32
	Sequence uint64
}

// Listener receives logged frames in consumption order.
type Listener interface {
	OnFrame(e Entry)
}

// SourceReader is the subset of ringbuf.Ring (or any decorator of it, such
// as another Tap) that Tap wraps.
type SourceReader interface {
	DrainInto(consumer func([]byte) bool) int
}

// Extractor pulls a source id out of a raw ring frame, returning the
// remaining bytes to hand on to both the log and the real consumer. The
// default extractor attributes everything to source 0 (the main
// application); a transport proxy multiplexing several writers onto one
// ring would prefix frames with their channel's source id and supply an
// Extractor that strips it.
type Extractor func(frame []byte) (sourceID uint32, body []byte)

func defaultExtractor(frame []byte) (uint32, []byte) { return 0, frame }

// Tap wraps a ring reader, logging every frame the real consumer drains
// and passing it through unchanged. It implements SourceReader itself, so
// it can wrap another Tap (one per auxiliary channel) or be wrapped by
// enginesched directly as its RingReader.
type Tap struct {
	ring      SourceReader
	listener  Listener
	extractor Extractor
	seq       uint64 // atomic
}

// NewTap builds a Tap over ring using the default (source 0) extractor.
func NewTap(ring SourceReader, listener Listener) *Tap {
	return &Tap{ring: ring, listener: listener, extractor: defaultExtractor}
}

// NewTapWithExtractor builds a Tap using a custom source-id extractor.
func NewTapWithExtractor(ring SourceReader, listener Listener, extractor Extractor) *Tap {
	return &Tap{ring: ring, listener: listener, extractor: extractor}
}

// DrainInto drains the wrapped ring, logging each frame before handing it
// to consumer, and returns the count consumed (as reported by the wrapped
// ring; the log sees exactly the frames consumer does).
func (t *Tap) DrainInto(consumer func([]byte) bool) int {
	return t.ring.DrainInto(func(frame []byte) bool {
		sourceID, body := t.extractor(frame)
		seq := atomic.AddUint64(&t.seq, 1)
		logged := append([]byte(nil), body...)
		t.listener.OnFrame(Entry{Bytes: logged, SourceID: sourceID, Sequence: seq})
		return consumer(body)
	})
}
