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

	"github.com/scosc/core/config"
)

// testConfig returns a config with small rings, fast enough for tests to
// not block on the real defaults' buffer sizes.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.InboundRingBytes = 1 << 14
	cfg.OutboundRingBytes = 1 << 14
	cfg.DebugRingBytes = 1 << 12
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Options{Config: testConfig()})
	require.NoError(t, e.Init(context.Background()))
	t.Cleanup(func() { _ = e.Destroy() })
	return e
}

func TestInitTransitionsToReadyAndEmitsReady(t *testing.T) {
	e := New(Options{Config: testConfig()})
	fired := make(chan struct{}, 1)
	e.On(EventReady, func(any) { fired <- struct{}{} })

	require.NoError(t, e.Init(context.Background()))
	t.Cleanup(func() { _ = e.Destroy() })

	assert.Equal(t, StateReady, e.State())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("ready event never fired")
	}
}

func TestInitFromNonUninitialisedFails(t *testing.T) {
	e := newTestEngine(t)
	err := e.Init(context.Background())
	require.Error(t, err)
	var wrong *ErrWrongState
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, StateReady, wrong.Have)
}

func TestDoubleShutdownFromUninitialisedIsNoop(t *testing.T) {
	e := New(Options{Config: testConfig()})
	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
}

func TestShutdownReturnsToUninitialisedAndEmits(t *testing.T) {
	e := New(Options{Config: testConfig()})
	require.NoError(t, e.Init(context.Background()))

	fired := make(chan struct{}, 1)
	e.On(EventShutdown, func(any) { fired <- struct{}{} })

	require.NoError(t, e.Shutdown())
	assert.Equal(t, StateUninitialised, e.State())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("shutdown event never fired")
	}
}

func TestDestroyIsTerminalAndClearsListeners(t *testing.T) {
	e := New(Options{Config: testConfig()})
	require.NoError(t, e.Init(context.Background()))

	calls := 0
	e.On(EventDestroy, func(any) { calls++ })

	require.NoError(t, e.Destroy())
	assert.Equal(t, StateDestroyed, e.State())
	assert.Equal(t, 1, calls)

	// Destroy is terminal: calling again is a no-op, not an error, and
	// every later operation sees ErrWrongState.
	require.NoError(t, e.Destroy())
	err := e.Send("/s_new")
	require.Error(t, err)
}

func TestMetricsReportsRingPeaks(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Send("/s_new"))
	require.Eventually(t, func() bool {
		return e.Metrics().InboundRingPeak > 0
	}, time.Second, time.Millisecond)
}

func TestRecentOSCRecordsDispatchedFramesEvenWithoutASubscriber(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Send("/s_new"))

	require.Eventually(t, func() bool {
		return len(e.RecentOSC()) > 0
	}, time.Second, time.Millisecond)

	entries := e.RecentOSC()
	assert.Equal(t, uint32(0), entries[len(entries)-1].SourceID)
}
