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

package osc

import (
	"encoding/binary"
	"math"
)

// MessageLen returns the exact wire length of m, so a caller (the direct
// writer, which takes the buffer from mcache.Malloc) can size a destination
// buffer once and hand it to EncodeFastMessage without any further
// allocation, mirroring thrift.FastMarshal's BLength pairing.
func (e Encoder) MessageLen(m *Message) int {
	n := paddedLen(len(m.Address))
	n += paddedLen(1 + len(m.Args)) // typetag string: ',' + one char per arg
	for _, a := range m.Args {
		switch a.Kind {
		case KindInt32, KindFloat32:
			n += 4
		case KindTimetag:
			n += 8
		case KindString:
			n += paddedLen(len(a.Str))
		case KindBlob:
			n += 4 + pad4(len(a.Blob))
		case KindIdentifier:
			n += 16
		}
	}
	return n
}

// BundleLen returns the exact wire length of a single-element bundle wrapping m.
func (e Encoder) BundleLen(m *Message) int {
	return 16 + 4 + e.MessageLen(m)
}

func paddedLen(n int) int { return pad4(n + 1) }

// EncodeFastMessage writes m into dst with no allocation and returns the
// number of bytes written. dst must be at least MessageLen(m) bytes;
// otherwise ErrBufferTooSmall is returned and dst is left in an undefined
// state. This is the hot path the direct writer uses for every packet it
// sends, including bundles it then hands to the prescheduler, which stores
// the encoded bytes as they are.
func (e Encoder) EncodeFastMessage(dst []byte, m *Message) (int, error) {
	need := e.MessageLen(m)
	if len(dst) < need {
		return 0, newError(ErrBufferTooSmall, 0, "dst too small for message")
	}
	if len(m.Address) == 0 || m.Address[0] != '/' {
		return 0, newError(ErrBadAddress, 0, m.Address)
	}
	off := writeFastString(dst, 0, m.Address)

	idTag := e.idTag()
	typetagOff := off
	dst[typetagOff] = ','
	for i, a := range m.Args {
		if a.Kind == KindIdentifier {
			dst[typetagOff+1+i] = idTag
		} else {
			dst[typetagOff+1+i] = byte(a.Kind)
		}
	}
	off = zeroPadFrom(dst, typetagOff, 1+len(m.Args))

	for _, a := range m.Args {
		switch a.Kind {
		case KindInt32:
			binary.BigEndian.PutUint32(dst[off:], uint32(a.Int))
			off += 4
		case KindFloat32:
			binary.BigEndian.PutUint32(dst[off:], math.Float32bits(a.Float))
			off += 4
		case KindTimetag:
			binary.BigEndian.PutUint64(dst[off:], uint64(a.Time))
			off += 8
		case KindString:
			off = writeFastString(dst, off, a.Str)
		case KindBlob:
			binary.BigEndian.PutUint32(dst[off:], uint32(len(a.Blob)))
			off += 4
			n := copy(dst[off:], a.Blob)
			off += n
			off = zeroPadFrom(dst, off-n, n)
		case KindIdentifier:
			copy(dst[off:off+16], a.ID[:])
			off += 16
		default:
			return 0, newError(ErrUnknownType, off, string(a.Kind))
		}
	}
	return off, nil
}

// EncodeFastBundle writes a single-message bundle carrying timetag tag,
// with no allocation. dst must be at least BundleLen(m) bytes.
func (e Encoder) EncodeFastBundle(dst []byte, tag Timetag, m *Message) (int, error) {
	need := e.BundleLen(m)
	if len(dst) < need {
		return 0, newError(ErrBufferTooSmall, 0, "dst too small for bundle")
	}
	copy(dst[0:8], bundleTag)
	binary.BigEndian.PutUint64(dst[8:16], uint64(tag))
	msgLen := e.MessageLen(m)
	binary.BigEndian.PutUint32(dst[16:20], uint32(msgLen))
	n, err := e.EncodeFastMessage(dst[20:20+msgLen], m)
	if err != nil {
		return 0, err
	}
	return 20 + n, nil
}

// writeFastString writes s null-terminated and zero-padded to a 4-byte
// boundary at dst[off:], returning the offset just past the padding.
func writeFastString(dst []byte, off int, s string) int {
	n := copy(dst[off:], s)
	dst[off+n] = 0
	return zeroPadFrom(dst, off, n+1)
}

// zeroPadFrom zeroes the padding bytes following the n bytes already written
// at dst[start:start+n] and returns the offset past the padded region.
func zeroPadFrom(dst []byte, start, n int) int {
	padded := pad4(n)
	for i := n; i < padded; i++ {
		dst[start+i] = 0
	}
	return start + padded
}
