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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func rapidAddress(t *rapid.T) string {
	segs := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9_]{1,8}`), 1, 4).Draw(t, "segs")
	addr := ""
	for _, s := range segs {
		addr += "/" + s
	}
	return addr
}

func rapidArg(t *rapid.T) Arg {
	kind := rapid.SampledFrom([]ArgKind{
		KindInt32, KindFloat32, KindString, KindBlob, KindTimetag, KindIdentifier,
	}).Draw(t, "kind")
	switch kind {
	case KindInt32:
		return Int32Arg(rapid.Int32().Draw(t, "i"))
	case KindFloat32:
		return Float32Arg(rapid.Float32().Draw(t, "f"))
	case KindString:
		return StringArg(rapid.StringMatching(`[a-zA-Z0-9_ /.-]{0,16}`).Draw(t, "s"))
	case KindBlob:
		return BlobArg(rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "b"))
	case KindTimetag:
		return TimetagArg(Timetag(rapid.Uint64().Draw(t, "t")))
	default:
		var id [16]byte
		bs := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "id")
		copy(id[:], bs)
		return IdentifierArg(id)
	}
}

func rapidMessage(t *rapid.T) *Message {
	n := rapid.IntRange(0, 6).Draw(t, "nargs")
	args := make([]Arg, n)
	for i := range args {
		args[i] = rapidArg(t)
	}
	return &Message{Address: rapidAddress(t), Args: args}
}

// TestRoundTripMessageGeneral checks Decode(Encode(m)) == m for arbitrary
// well-formed messages via the allocating encoder.
func TestRoundTripMessageGeneral(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msg := rapidMessage(t)
		buf, err := Encode(msg)
		require.NoError(t, err)

		p, err := Decode(buf)
		require.NoError(t, err)
		got, ok := p.(*Message)
		require.True(t, ok)
		assert.Equal(t, msg.Address, got.Address)
		require.Equal(t, len(msg.Args), len(got.Args))
		for i := range msg.Args {
			assert.Equal(t, msg.Args[i], got.Args[i])
		}
	})
}

// TestRoundTripMessageFast checks that the zero-allocation fast path produces
// byte-identical output to the general encoder, and that it too round-trips.
func TestRoundTripMessageFast(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msg := rapidMessage(t)
		var enc Encoder

		general, err := enc.EncodeMessage(msg)
		require.NoError(t, err)

		dst := make([]byte, enc.MessageLen(msg))
		n, err := enc.EncodeFastMessage(dst, msg)
		require.NoError(t, err)
		require.Equal(t, general, dst[:n])

		p, err := Decode(dst[:n])
		require.NoError(t, err)
		got := p.(*Message)
		assert.Equal(t, msg.Address, got.Address)
	})
}

// TestRoundTripBundle checks bundles of arbitrary depth and width.
func TestRoundTripBundle(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(0, 2).Draw(t, "depth")
		bdl := rapidBundle(t, depth)

		buf, err := Encode(bdl)
		require.NoError(t, err)

		p, err := Decode(buf)
		require.NoError(t, err)
		got, ok := p.(*Bundle)
		require.True(t, ok)
		assert.Equal(t, bdl.Time, got.Time)
		assert.Equal(t, len(bdl.Elements), len(got.Elements))
	})
}

func rapidBundle(t *rapid.T, depth int) *Bundle {
	n := rapid.IntRange(0, 4).Draw(t, "nelems")
	bdl := &Bundle{Time: Timetag(rapid.Uint64().Draw(t, "tag"))}
	for i := 0; i < n; i++ {
		if depth > 0 && rapid.Bool().Draw(t, "nest") {
			bdl.Elements = append(bdl.Elements, rapidBundle(t, depth-1))
		} else {
			bdl.Elements = append(bdl.Elements, rapidMessage(t))
		}
	}
	return bdl
}

// TestTimetagRoundTrip checks NTP<->Unix conversions are mutually inverse to
// within float64 precision, and that Immediate is preserved through encoding.
func TestTimetagRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unix := rapid.Float64Range(0, 2085978495).Draw(t, "unix") // through the 32-bit NTP seconds rollover (Feb 2036)
		tag := TimetagFromUnixSeconds(unix)
		back := tag.UnixSeconds()
		assert.InDelta(t, unix, back, 1e-6)
	})
}

func TestImmediateTimetagPreserved(t *testing.T) {
	bdl := &Bundle{Time: Immediate, Elements: []Packet{&Message{Address: "/n_go"}}}
	buf, err := Encode(bdl)
	require.NoError(t, err)
	p, err := Decode(buf)
	require.NoError(t, err)
	got := p.(*Bundle)
	assert.True(t, got.IsImmediate())
}
