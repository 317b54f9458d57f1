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

package scosc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scosc/core/cache"
	"github.com/scosc/core/osc"
)

func TestSendRequiresReady(t *testing.T) {
	e := New(Options{Config: testConfig()})
	err := e.Send("/s_new")
	require.Error(t, err)
	var wrong *ErrWrongState
	require.ErrorAs(t, err, &wrong)
}

func TestSendOSCDecodesAndSubmits(t *testing.T) {
	e := newTestEngine(t)
	raw, err := osc.Encode(&osc.Message{Address: "/s_new", Args: []osc.Arg{osc.StringArg("sine")}})
	require.NoError(t, err)
	require.NoError(t, e.SendOSC(raw, SendOptions{}))
}

func TestLoadSynthDefCachesAndEmitsEvents(t *testing.T) {
	e := newTestEngine(t)

	var starts, dones []LoadPayload
	e.On(EventLoadStart, func(p any) { starts = append(starts, p.(LoadPayload)) })
	e.On(EventLoadDone, func(p any) { dones = append(dones, p.(LoadPayload)) })

	require.NoError(t, e.LoadSynthDef("sine", []byte{0xAB, 0xCD}))

	require.Len(t, starts, 1)
	assert.Equal(t, "synthdef", starts[0].Kind)
	assert.Equal(t, "sine", starts[0].Name)
	require.Len(t, dones, 1)
	assert.NoError(t, dones[0].Err)
}

func TestLoadSynthDefFromPathSanitizesAndReads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sine.scsyndef"), []byte{0x01}, 0o600))

	e := New(Options{Config: testConfig(), SampleBase: dir})
	require.NoError(t, e.Init(context.Background()))
	t.Cleanup(func() { _ = e.Destroy() })

	require.NoError(t, e.LoadSynthDefFromPath("sine", "sine.scsyndef"))
	require.Error(t, e.LoadSynthDefFromPath("evil", "../../../etc/passwd"))
}

func TestLoadSampleFromPathSanitizesWithoutLocalRead(t *testing.T) {
	dir := t.TempDir()
	e := New(Options{Config: testConfig(), SampleBase: dir})
	require.NoError(t, e.Init(context.Background()))
	t.Cleanup(func() { _ = e.Destroy() })

	// The file need not exist locally: the engine, not this facade, reads
	// by path.
	require.NoError(t, e.LoadSampleFromPath(0, "kick.wav", 0, 0))
	require.Error(t, e.LoadSampleFromPath(0, "../outside.wav", 0, 0))
}

func TestLoadSampleCachesBytesVariant(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.LoadSample(3, []byte{1, 2, 3}, 0, 3))
}

func TestCancelAllReportsPreschedulerCount(t *testing.T) {
	e := newTestEngine(t)
	future := &osc.Bundle{
		Time:     osc.NewTimetag(e.clock.NowNTP() + 3600),
		Elements: []osc.Packet{&osc.Message{Address: "/s_new"}},
	}
	require.NoError(t, e.SendPacket(future, SendOptions{SessionID: 1, Tag: "t"}))
	assert.Equal(t, 1, e.CancelAll())
}

func TestPurgeAcknowledgesThroughAudioLoop(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Purge(ctx))
}

func TestRecoverReplaysUsingSampleVariant(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.LoadSample(5, []byte{9, 9}, 0, 2))
	require.NoError(t, e.cache.Replay(
		func(cache.SynthDef) error { return nil },
		func(s cache.Sample) error {
			assert.Equal(t, int32(5), s.BufferID)
			return nil
		},
	))
}
