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

// Encoder is the allocating, general-purpose encoder used for interactive
// and low-rate calls. For the hot sender path, use EncodeFast instead.
type Encoder struct {
	// IDTag is the type-tag character for the identifier extension.
	// Zero means defaultIdentifierTag.
	IDTag byte
}

func (e Encoder) idTag() byte {
	if e.IDTag == 0 {
		return defaultIdentifierTag
	}
	return e.IDTag
}

// Encode encodes any Packet (message or bundle) under the design-default
// identifier tag.
func Encode(p Packet) ([]byte, error) {
	return Encoder{}.Encode(p)
}

// Encode encodes any Packet (message or bundle).
func (e Encoder) Encode(p Packet) ([]byte, error) {
	switch v := p.(type) {
	case *Message:
		return e.EncodeMessage(v)
	case *Bundle:
		return e.EncodeBundle(v)
	default:
		return nil, newError(ErrUnknown, 0, "unsupported packet type")
	}
}

// EncodeMessage encodes a single OSC message.
func (e Encoder) EncodeMessage(m *Message) ([]byte, error) {
	buf := make([]byte, 0, 32+len(m.Args)*8)
	return e.appendMessage(buf, m)
}

func (e Encoder) appendMessage(buf []byte, m *Message) ([]byte, error) {
	if len(m.Address) == 0 || m.Address[0] != '/' {
		return nil, newError(ErrBadAddress, 0, m.Address)
	}
	buf = appendPaddedString(buf, m.Address)

	idTag := e.idTag()
	typetag := make([]byte, 1, 1+len(m.Args))
	typetag[0] = ','
	for _, a := range m.Args {
		if a.Kind == KindIdentifier {
			typetag = append(typetag, idTag)
		} else {
			typetag = append(typetag, byte(a.Kind))
		}
	}
	buf = appendPaddedString(buf, string(typetag))

	for _, a := range m.Args {
		switch a.Kind {
		case KindInt32:
			buf = appendUint32(buf, uint32(a.Int))
		case KindFloat32:
			buf = appendUint32(buf, math.Float32bits(a.Float))
		case KindTimetag:
			buf = appendUint64(buf, uint64(a.Time))
		case KindString:
			buf = appendPaddedString(buf, a.Str)
		case KindBlob:
			buf = appendUint32(buf, uint32(len(a.Blob)))
			buf = append(buf, a.Blob...)
			buf = appendZeroPad(buf, len(a.Blob))
		case KindIdentifier:
			buf = append(buf, a.ID[:]...)
		default:
			return nil, newError(ErrUnknownType, 0, string(a.Kind))
		}
	}
	return buf, nil
}

// EncodeBundle encodes a bundle, recursively encoding nested elements and
// prefixing each with its own length.
func (e Encoder) EncodeBundle(b *Bundle) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, bundleTag...)
	buf = appendUint64(buf, uint64(b.Time))
	for _, elem := range b.Elements {
		elemBuf, err := e.Encode(elem)
		if err != nil {
			return nil, err
		}
		buf = appendUint32(buf, uint32(len(elemBuf)))
		buf = append(buf, elemBuf...)
	}
	return buf, nil
}

func appendPaddedString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	return appendZeroPad(buf, len(s)+1)
}

// appendZeroPad pads buf so that the most recently appended n bytes reach a
// 4-byte boundary.
func appendZeroPad(buf []byte, n int) []byte {
	padded := pad4(n)
	for i := n; i < padded; i++ {
		buf = append(buf, 0)
	}
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
