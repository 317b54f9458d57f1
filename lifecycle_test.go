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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuspendResumeRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	var suspended, resumed, changes int
	e.On(EventAudioSuspended, func(any) { suspended++ })
	e.On(EventAudioResumed, func(any) { resumed++ })
	e.On(EventAudioStateChange, func(any) { changes++ })

	require.NoError(t, e.Suspend())
	assert.Equal(t, StateSuspended, e.State())

	require.NoError(t, e.Resume())
	assert.Equal(t, StateReady, e.State())

	assert.Equal(t, 1, suspended)
	assert.Equal(t, 1, resumed)
	assert.Equal(t, 2, changes)
}

func TestSuspendResumeRejectWrongState(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Suspend())
	require.Error(t, e.Suspend())
	require.NoError(t, e.Resume())
	require.Error(t, e.Resume())
}

func TestResetReturnsToReadyAndEmitsReady(t *testing.T) {
	e := newTestEngine(t)

	fired := make(chan struct{}, 1)
	e.On(EventReady, func(any) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	require.NoError(t, e.Reset())
	assert.Equal(t, StateReady, e.State())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("reset did not re-emit ready")
	}
}

func TestRecoverFromSuspendedJustResumes(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Suspend())

	var recoverStarted bool
	e.On(EventRecoverStart, func(any) { recoverStarted = true })

	require.NoError(t, e.Recover(context.Background()))
	assert.Equal(t, StateReady, e.State())
	assert.False(t, recoverStarted, "recover from suspended should resume, not reset+replay")
}

func TestRecoverFromReadyReplaysCachedLoads(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.LoadSynthDef("sine", []byte{0x01, 0x02}))

	var starts, dones int
	e.On(EventLoadStart, func(any) { starts++ })
	e.On(EventLoadDone, func(any) { dones++ })

	require.NoError(t, e.Recover(context.Background()))
	assert.Equal(t, StateReady, e.State())
	// The cached synth-def replays once through loadSynthDef.
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, dones)
}
