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

const defaultIdentifierTag byte = 'u'

// Decoder decodes OSC bytes into Packet trees. The zero value is ready to
// use and decodes the identifier extension under the design-default tag 'u'.
type Decoder struct {
	// IDTag is the type-tag character used for the opaque 16-byte node
	// identifier extension. Zero means defaultIdentifierTag.
	IDTag byte
}

func (d Decoder) idTag() byte {
	if d.IDTag == 0 {
		return defaultIdentifierTag
	}
	return d.IDTag
}

// Decode decodes a single OSC packet (message or bundle) under the
// design-default identifier tag.
func Decode(b []byte) (Packet, error) {
	return Decoder{}.Decode(b)
}

// Decode decodes a single OSC packet (message or bundle).
func (d Decoder) Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, newError(ErrTruncated, 0, "empty buffer")
	}
	if len(b) >= 8 && string(b[:8]) == bundleTag {
		bdl, _, err := d.decodeBundle(b, 0)
		return bdl, err
	}
	msg, _, err := d.decodeMessage(b, 0)
	return msg, err
}

// pad4 returns the padded length of n rounded up to the next multiple of 4.
func pad4(n int) int {
	return (n + 3) &^ 3
}

func (d Decoder) decodeBundle(b []byte, base int) (*Bundle, int, error) {
	if len(b) < 16 {
		return nil, 0, newError(ErrTruncated, base, "bundle header too short")
	}
	tag := Timetag(binary.BigEndian.Uint64(b[8:16]))
	off := 16
	bdl := &Bundle{Time: tag}
	for off < len(b) {
		if len(b)-off < 4 {
			return nil, 0, newError(ErrTruncated, base+off, "truncated element length")
		}
		sz := int(int32(binary.BigEndian.Uint32(b[off:])))
		off += 4
		if sz < 0 || off+sz > len(b) {
			return nil, 0, newError(ErrTruncated, base+off, "element length exceeds buffer")
		}
		elemBytes := b[off : off+sz]
		var (
			elem Packet
			err  error
		)
		if len(elemBytes) >= 8 && string(elemBytes[:8]) == bundleTag {
			elem, _, err = d.decodeBundle(elemBytes, base+off)
		} else {
			elem, _, err = d.decodeMessage(elemBytes, base+off)
		}
		if err != nil {
			return nil, 0, err
		}
		bdl.Elements = append(bdl.Elements, elem)
		off += sz
	}
	return bdl, off, nil
}

func (d Decoder) decodeMessage(b []byte, base int) (*Message, int, error) {
	addr, n, err := readPaddedString(b, base)
	if err != nil {
		return nil, 0, err
	}
	if len(addr) == 0 || addr[0] != '/' {
		return nil, 0, newError(ErrBadAddress, base, addr)
	}
	for i := 0; i < len(addr); i++ {
		if addr[i] >= 0x80 {
			return nil, 0, newError(ErrNonASCII, base+i, "address")
		}
	}
	off := n
	if off >= len(b) {
		// address-only message (no typetag string) is tolerated as zero-arg.
		return &Message{Address: addr}, off, nil
	}
	typetag, n2, err := readPaddedString(b[off:], base+off)
	if err != nil {
		return nil, 0, err
	}
	off += n2
	msg := &Message{Address: addr}
	if len(typetag) == 0 || typetag[0] != ',' {
		// No type tag string present; treat as zero-arg message.
		return msg, off, nil
	}
	idTag := d.idTag()
	for i := 1; i < len(typetag); i++ {
		var (
			a    Arg
			used int
		)
		switch byte(typetag[i]) {
		case byte(KindInt32):
			if len(b)-off < 4 {
				return nil, 0, newError(ErrTruncated, base+off, "int32 arg")
			}
			a = Int32Arg(int32(binary.BigEndian.Uint32(b[off:])))
			used = 4
		case byte(KindFloat32):
			if len(b)-off < 4 {
				return nil, 0, newError(ErrTruncated, base+off, "float32 arg")
			}
			a = Float32Arg(math.Float32frombits(binary.BigEndian.Uint32(b[off:])))
			used = 4
		case byte(KindTimetag):
			if len(b)-off < 8 {
				return nil, 0, newError(ErrTruncated, base+off, "timetag arg")
			}
			a = TimetagArg(Timetag(binary.BigEndian.Uint64(b[off:])))
			used = 8
		case byte(KindString):
			s, n3, err2 := readPaddedString(b[off:], base+off)
			if err2 != nil {
				return nil, 0, err2
			}
			a = StringArg(s)
			used = n3
		case byte(KindBlob):
			blob, n3, err2 := readBlob(b[off:], base+off)
			if err2 != nil {
				return nil, 0, err2
			}
			a = BlobArg(blob)
			used = n3
		case idTag:
			if len(b)-off < 16 {
				return nil, 0, newError(ErrTruncated, base+off, "identifier arg")
			}
			var id [16]byte
			copy(id[:], b[off:off+16])
			a = IdentifierArg(id)
			used = 16
		default:
			return nil, 0, newError(ErrUnknownType, base+off, string(typetag[i]))
		}
		msg.Args = append(msg.Args, a)
		off += used
	}
	return msg, off, nil
}

func readPaddedString(b []byte, base int) (string, int, error) {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	if i >= len(b) {
		return "", 0, newError(ErrTruncated, base, "unterminated string")
	}
	s := string(b[:i])
	n := pad4(i + 1)
	if n > len(b) {
		return "", 0, newError(ErrBadPadding, base, "string padding exceeds buffer")
	}
	return s, n, nil
}

func readBlob(b []byte, base int) ([]byte, int, error) {
	if len(b) < 4 {
		return nil, 0, newError(ErrTruncated, base, "blob length")
	}
	sz := int(int32(binary.BigEndian.Uint32(b)))
	if sz < 0 {
		return nil, 0, newError(ErrTruncated, base, "negative blob length")
	}
	n := pad4(4 + sz)
	if n > len(b) {
		return nil, 0, newError(ErrTruncated, base, "blob data exceeds buffer")
	}
	blob := make([]byte, sz)
	copy(blob, b[4:4+sz])
	return blob, n, nil
}
