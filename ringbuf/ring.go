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

package ringbuf

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/bytedance/gopkg/lang/mcache"
)

const lenPrefixSize = 4

// Ring is a single-producer/single-consumer byte-framed ring buffer over a
// fixed-capacity backing array. Frames are `[u32 big-endian length][payload]`.
// The backing array plays the role the design calls a "shared memory
// region": in a browser/WASM host the producer and consumer are separate
// execution contexts mapped onto one SharedArrayBuffer; here producer and
// consumer are goroutines in one process, which already share the Go heap,
// so the region is simply a []byte guarded by atomic head/tail/peak offsets
// rather than anything OS-level. See DESIGN.md's Open Question decisions.
//
// head is advanced only by the writer, tail only by the reader. Both are
// capacity-relative byte offsets held mod cap. One byte of capacity is
// permanently reserved so that head==tail is unambiguously "empty".
type Ring struct {
	buf []byte
	cap uint32

	head uint32 // atomic; next write offset
	tail uint32 // atomic; next read offset
	peak uint32 // atomic; high-water mark of bytes in flight

	overflowed uint64 // atomic; count of writes rejected as full
}

// New allocates a Ring of the given capacity in bytes. capacity is rounded
// up to a minimum of 64 bytes; a power of two is recommended (simplifies
// mod arithmetic the caller may do when sizing frames) but not required.
func New(capacity uint32) *Ring {
	if capacity < 64 {
		capacity = 64
	}
	return &Ring{
		buf: mcache.Malloc(int(capacity)),
		cap: capacity,
	}
}

// Close releases the backing buffer back to the pool. The Ring must not be
// used afterward.
func (r *Ring) Close() {
	mcache.Free(r.buf)
	r.buf = nil
}

// Cap returns the buffer's total capacity in bytes.
func (r *Ring) Cap() uint32 { return r.cap }

// Peak returns the high-water mark of bytes in flight, reset only by
// ResetPeak.
func (r *Ring) Peak() uint32 { return atomic.LoadUint32(&r.peak) }

// ResetPeak zeroes the high-water mark, typically called by a metrics
// scrape after recording it.
func (r *Ring) ResetPeak() { atomic.StoreUint32(&r.peak, 0) }

// Overflowed returns the count of Write calls rejected because the frame
// did not currently fit.
func (r *Ring) Overflowed() uint64 { return atomic.LoadUint64(&r.overflowed) }

// used returns the number of bytes currently occupied, computed from a
// consistent (head, tail) snapshot.
func (r *Ring) used(head, tail uint32) uint32 {
	return (head - tail + r.cap) % r.cap
}

// Free returns the number of bytes currently available to a writer, which
// is capacity minus bytes-in-flight minus the one reserved byte.
func (r *Ring) Free() uint32 {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)
	return r.cap - r.used(head, tail) - 1
}

// Write frames payload as [u32 length][payload] and copies it into the
// ring. It returns ErrFrameTooLarge if the frame could never fit even
// against an empty buffer, or ErrFull if there is currently insufficient
// free space; in both cases the buffer is left unmodified. On success it
// returns the number of payload bytes written (len(payload)).
func (r *Ring) Write(payload []byte) (int, error) {
	frameLen := uint32(lenPrefixSize + len(payload))
	if frameLen > r.cap-1 {
		return 0, ErrFrameTooLarge
	}

	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)
	free := r.cap - r.used(head, tail) - 1
	if frameLen > free {
		atomic.AddUint64(&r.overflowed, 1)
		return 0, ErrFull
	}

	var lenBuf [lenPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	off := r.writeAt(head, lenBuf[:])
	off = r.writeAt(off, payload)

	newUsed := r.used(off, tail)
	if newUsed > atomic.LoadUint32(&r.peak) {
		atomic.StoreUint32(&r.peak, newUsed)
	}

	// Publish the new head only after the payload bytes above are visible;
	// on amd64/arm64 Go's atomic store is already a release barrier, and
	// this keeps the ordering explicit regardless of platform.
	atomic.StoreUint32(&r.head, off)
	return len(payload), nil
}

// Read returns the next complete frame's payload, copied into a
// freshly-allocated slice, or ErrEmpty if no frame is available. It returns
// ErrCorrupt if the length prefix at the tail describes more bytes than the
// writer has published, which indicates a protocol violation rather than
// ordinary emptiness.
func (r *Ring) Read() ([]byte, error) {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)
	if head == tail {
		return nil, ErrEmpty
	}
	avail := r.used(head, tail)
	if avail < lenPrefixSize {
		return nil, ErrCorrupt
	}

	var lenBuf [lenPrefixSize]byte
	r.readAt(tail, lenBuf[:])
	payloadLen := binary.BigEndian.Uint32(lenBuf[:])
	if uint64(lenPrefixSize)+uint64(payloadLen) > uint64(avail) {
		return nil, ErrCorrupt
	}

	payload := make([]byte, payloadLen)
	off := (tail + lenPrefixSize) % r.cap
	r.readAt(off, payload)

	newTail := (off + payloadLen) % r.cap
	atomic.StoreUint32(&r.tail, newTail)
	return payload, nil
}

// RecoverCorrupt is called after Read returns ErrCorrupt. It scans forward
// byte by byte from the current tail looking for an offset whose length
// prefix would fit within the bytes currently available, and resumes
// reading from there. It reports whether a plausible frame boundary was
// found; if not, it advances tail to head (draining the ring) so the
// caller is guaranteed to make progress either way.
func (r *Ring) RecoverCorrupt() bool {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)
	avail := r.used(head, tail)

	for skip := uint32(1); skip+lenPrefixSize <= avail; skip++ {
		candidate := (tail + skip) % r.cap
		var lenBuf [lenPrefixSize]byte
		r.readAt(candidate, lenBuf[:])
		payloadLen := binary.BigEndian.Uint32(lenBuf[:])
		if uint64(lenPrefixSize)+uint64(payloadLen) <= uint64(avail-skip) {
			atomic.StoreUint32(&r.tail, candidate)
			return true
		}
	}
	atomic.StoreUint32(&r.tail, head)
	return false
}

// DrainInto calls consumer with each available frame in order, stopping
// when the ring is empty or consumer returns false. It returns the number
// of frames delivered.
func (r *Ring) DrainInto(consumer func([]byte) bool) int {
	n := 0
	for {
		payload, err := r.Read()
		if err != nil {
			return n
		}
		n++
		if !consumer(payload) {
			return n
		}
	}
}

// writeAt copies data into buf starting at offset off (mod cap), wrapping
// across the end of the backing array as needed, and returns the new
// offset just past the written bytes.
func (r *Ring) writeAt(off uint32, data []byte) uint32 {
	n := copy(r.buf[off:], data)
	if n < len(data) {
		copy(r.buf[0:], data[n:])
	}
	return (off + uint32(len(data))) % r.cap
}

// readAt copies len(dst) bytes from buf starting at offset off (mod cap)
// into dst, wrapping as needed.
func (r *Ring) readAt(off uint32, dst []byte) {
	n := copy(dst, r.buf[off:])
	if n < len(dst) {
		copy(dst[n:], r.buf[0:])
	}
}
