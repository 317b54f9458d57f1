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
	"time"
)

// blockQuantum is the stand-in audio block size this port drives its
// simulated callback at, since there is no real audio I/O (an explicit
// non-goal): 128 frames at 48 kHz, matching spec.md §5's "quantum of 128
// frames... typically 2.7 ms at 48 kHz".
const blockQuantum = 128
const sampleRate = 48000

var blockDuration = time.Duration(float64(blockQuantum) / float64(sampleRate) * float64(time.Second))

// startAudioLoop launches the goroutine standing in for "called once per
// audio block by the host". It is the only goroutine that calls
// e.sched.Intake/Release and e.dsp.Dispatch, preserving G's single-consumer
// invariant over the inbound ring even though this is a simulation.
func (e *Engine) startAudioLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	e.audioCancel = cancel
	e.audioDone = make(chan struct{})
	e.spawnSupervised(ctx, e.runAudioLoop)
}

// spawnSupervised starts f on its own goroutine and recovers any panic that
// escapes it outright, not just one tick of it (safeAudioTick already
// guards each tick individually), handing the recovered value to the same
// panic handler every other background goroutine here reports through.
func (e *Engine) spawnSupervised(ctx context.Context, f func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.panicHandler(ctx, r)
			}
		}()
		f(ctx)
	}()
}

func (e *Engine) stopAudioLoop() {
	if e.audioCancel == nil {
		return
	}
	e.audioCancel()
	<-e.audioDone
}

func (e *Engine) runAudioLoop(ctx context.Context) {
	defer close(e.audioDone)
	ticker := time.NewTicker(blockDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.safeAudioTick(ctx)
		}
	}
}

func (e *Engine) safeAudioTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.panicHandler(ctx, r)
		}
	}()
	e.audioTick()
}

// audioTick is "a pure function of (shared state, input ring, engine)" per
// spec.md §9: intake drains ring A (tapped by the OSC log on the way in),
// dispatches timely frames to the DSP stand-in, and release pops anything
// in G's heap whose deadline has now arrived.
func (e *Engine) audioTick() {
	blockStart := e.clock.NowNTP()
	blockEnd := blockStart + blockDuration.Seconds()

	if _, err := e.sched.Intake(e.loggedInbound, e.dsp); err != nil {
		e.writeDebug("intake: " + err.Error())
	}
	if _, err := e.sched.Release(blockStart, blockEnd, e.dsp); err != nil {
		e.writeDebug("release: " + err.Error())
	}
}
