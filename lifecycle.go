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

	"github.com/scosc/core/cache"
	"github.com/scosc/core/idmap"
)

// Suspend pauses the audio context's ticking, per spec.md §4.K's
// ready -> suspended transition. Pending prescheduler/engine-heap state is
// left intact so Resume picks up exactly where it left off.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	if err := requireState("Suspend", e.state, StateReady); err != nil {
		e.mu.Unlock()
		return err
	}
	e.state = StateSuspended
	e.mu.Unlock()

	e.stopAudioLoop()
	e.emit(EventAudioSuspended, nil)
	e.emit(EventAudioStateChange, e.State())
	return nil
}

// Resume restarts the audio context after Suspend, returning to ready.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if err := requireState("Resume", e.state, StateSuspended); err != nil {
		e.mu.Unlock()
		return err
	}
	e.state = StateReady
	e.mu.Unlock()

	e.startAudioLoop()
	e.emit(EventAudioResumed, nil)
	e.emit(EventAudioStateChange, e.State())
	return nil
}

// Reset clears every pipeline stage (prescheduler, engine heap, identifier
// map) and re-anchors the NTP clock, then returns to ready. Cached
// synth-def/sample loads and listeners are unaffected; nothing is replayed
// (that's recover's job).
func (e *Engine) Reset() error {
	if err := e.requireReady("Reset"); err != nil {
		return err
	}

	e.stopAudioLoop()
	e.pre.CancelAll()
	e.sched.PurgeSentinel()
	e.idMap.Reset()
	e.clock.Init()
	e.startAudioLoop()

	e.emit(EventReady, nil)
	return nil
}

// Recover is the conditional path spec.md §4.K describes: if the engine
// merely paused (suspended), resume it; otherwise perform a full Reset and
// replay every cached synth-def/sample load.
func (e *Engine) Recover(ctx context.Context) error {
	if e.State() == StateSuspended {
		return e.Resume()
	}

	e.emit(EventRecoverStart, nil)
	if err := e.Reset(); err != nil {
		return err
	}
	return e.cache.Replay(
		func(def cache.SynthDef) error { return e.loadSynthDef(def) },
		func(s cache.Sample) error { return e.loadSample(s) },
	)
}
