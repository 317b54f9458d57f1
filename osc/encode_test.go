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
)

func TestEncodeFastMessageMatchesGeneral(t *testing.T) {
	msg := &Message{
		Address: "/n_set",
		Args: []Arg{
			Int32Arg(1001),
			StringArg("amp"),
			Float32Arg(0.25),
			BlobArg([]byte{0xde, 0xad, 0xbe}),
			IdentifierArg([16]byte{9, 9, 9, 9}),
		},
	}
	var enc Encoder

	general, err := enc.EncodeMessage(msg)
	require.NoError(t, err)

	dst := make([]byte, enc.MessageLen(msg))
	n, err := enc.EncodeFastMessage(dst, msg)
	require.NoError(t, err)
	assert.Equal(t, len(general), n)
	assert.Equal(t, general, dst[:n])
}

func TestEncodeFastMessageBufferTooSmall(t *testing.T) {
	msg := &Message{Address: "/x", Args: []Arg{Int32Arg(1)}}
	var enc Encoder
	dst := make([]byte, enc.MessageLen(msg)-1)

	_, err := enc.EncodeFastMessage(dst, msg)
	require.Error(t, err)
	var oscErr *Error
	require.ErrorAs(t, err, &oscErr)
	assert.Equal(t, ErrBufferTooSmall, oscErr.Kind)
}

func TestEncodeFastBundleSingleMessage(t *testing.T) {
	msg := &Message{Address: "/n_go", Args: []Arg{Int32Arg(2000)}}
	var enc Encoder
	tag := NewTimetag(12345.5)

	dst := make([]byte, enc.BundleLen(msg))
	n, err := enc.EncodeFastBundle(dst, tag, msg)
	require.NoError(t, err)
	assert.Equal(t, len(dst), n)

	p, err := Decode(dst[:n])
	require.NoError(t, err)
	bdl, ok := p.(*Bundle)
	require.True(t, ok)
	assert.Equal(t, tag, bdl.Time)
	require.Len(t, bdl.Elements, 1)
	gotMsg, ok := bdl.Elements[0].(*Message)
	require.True(t, ok)
	assert.Equal(t, msg.Address, gotMsg.Address)
}

func TestEncodeBadAddressRejected(t *testing.T) {
	_, err := Encode(&Message{Address: "no-leading-slash"})
	require.Error(t, err)
	var oscErr *Error
	require.ErrorAs(t, err, &oscErr)
	assert.Equal(t, ErrBadAddress, oscErr.Kind)
}

func TestEncodeCustomIdentifierTag(t *testing.T) {
	msg := &Message{Address: "/x", Args: []Arg{IdentifierArg([16]byte{1})}}
	enc := Encoder{IDTag: 'U'}
	buf, err := enc.EncodeMessage(msg)
	require.NoError(t, err)

	dec := Decoder{IDTag: 'U'}
	p, err := dec.Decode(buf)
	require.NoError(t, err)
	got := p.(*Message)
	require.Len(t, got.Args, 1)
	assert.Equal(t, KindIdentifier, got.Args[0].Kind)
}
