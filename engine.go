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

// Package scosc is the public facade (module K): it wires rings A/A'/A'',
// the direct writer and prescheduler (E/F), the engine-side scheduler (G),
// the reply and debug readers (H), the OSC log (I), and the purge
// coordinator (J) into one lifecycle, and exposes the surface spec.md §6
// names. It owns every background goroutine the core spawns and is the only
// package in this module that is not, by itself, real-time safe — it runs
// entirely in the application context.
package scosc

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/scosc/core/cache"
	"github.com/scosc/core/config"
	"github.com/scosc/core/dispatch"
	"github.com/scosc/core/enginesched"
	"github.com/scosc/core/idmap"
	"github.com/scosc/core/metrics"
	"github.com/scosc/core/ntpclock"
	"github.com/scosc/core/osc"
	"github.com/scosc/core/osclog"
	"github.com/scosc/core/purge"
	"github.com/scosc/core/replypath"
	"github.com/scosc/core/ringbuf"
	"github.com/scosc/core/testengine"
)

// oscHistoryCapacity bounds how many recently-dispatched OSC frames
// RecentOSC can return.
const oscHistoryCapacity = 256

// Engine is the facade. The zero value is not usable; construct with New.
type Engine struct {
	*emitter

	mu    sync.Mutex
	state State

	cfg      *config.Config
	sampleBase string

	clock *ntpclock.Clock
	idMap *idmap.Map
	m     *metrics.Set

	inbound  *ringbuf.Ring
	outbound *ringbuf.Ring
	debug    *ringbuf.Ring

	direct *dispatch.DirectWriter
	pre    *dispatch.Prescheduler
	sched  *enginesched.Scheduler
	dsp    enginesched.Dispatcher

	loggedInbound *osclog.Tap
	oscHistory    *osclog.History

	replyReader *replypath.Reader
	debugReader *replypath.Reader

	purgeCoord *purge.Coordinator
	cache      *cache.Cache

	syncs *syncWaiters

	panicHandler func(ctx context.Context, r any)

	audioCancel context.CancelFunc
	audioDone   chan struct{}

	outSeq uint64 // atomic-by-mutex; only touched from the application context
}

// Options configures New. An empty SampleBase defaults to "." (the
// process's working directory).
type Options struct {
	Config     *config.Config
	SampleBase string
	// Dispatcher substitutes for the real DSP engine. Nil selects a
	// testengine.Engine, the in-pack stand-in spec.md's non-goals name.
	Dispatcher enginesched.Dispatcher
}

// New constructs an Engine in StateUninitialised. It does not allocate
// rings or start any goroutine until Init is called.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	base := opts.SampleBase
	if base == "" {
		base = "."
	}
	e := &Engine{
		emitter:    newEmitter(),
		state:      StateUninitialised,
		cfg:        cfg,
		sampleBase: base,
		cache:      cache.New(),
		syncs:      newSyncWaiters(),
		panicHandler: func(_ context.Context, r any) {
			slog.Error("scosc: background goroutine panicked", "recovered", r, "stack", string(debug.Stack()))
		},
	}
	e.dsp = opts.Dispatcher
	return e
}

// SetPanicHandler overrides the panic handler installed on every background
// goroutine the engine owns (prescheduler, reply reader, debug reader).
// Must be called before Init to affect goroutines Init starts.
func (e *Engine) SetPanicHandler(f func(ctx context.Context, r any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panicHandler = f
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Init builds the rings and subsystems, starts every auxiliary goroutine,
// and transitions uninitialised -> initialising -> ready, emitting
// EventReady on success. Calling Init from any other state is an error.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	if err := requireState("Init", e.state, StateUninitialised); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.cfg.Validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.state = StateInitialising
	e.mu.Unlock()

	e.clock = ntpclock.New()
	e.idMap = idmap.New()
	e.m = metrics.NewSet()

	e.inbound = ringbuf.New(e.cfg.InboundRingBytes)
	e.outbound = ringbuf.New(e.cfg.OutboundRingBytes)
	e.debug = ringbuf.New(e.cfg.DebugRingBytes)

	idTag := byte(e.cfg.NTPIdentifierType[0])

	e.direct = dispatch.NewDirectWriter(e.inbound, e.idMap, e.clock, e.m, idTag, e.cfg.LookaheadSeconds, e.cfg.EngineSchedulerSlotBytes)
	e.pre = dispatch.NewPrescheduler(e.inbound, e.clock, e.m, e.cfg.PreschedulerCapacity, e.cfg.DispatchLeadSeconds, time.Duration(e.cfg.PreschedulerPollIntervalMs)*time.Millisecond)
	e.direct.SetPrescheduler(e.pre)
	e.pre.SetPanicHandler(e.panicHandler)

	e.sched = enginesched.New(e.cfg.EngineSchedulerCapacity, e.cfg.EngineSchedulerSlotBytes, e.m)
	e.sched.SetDebugSink(func(msg string, args ...any) {
		e.writeDebug(fmt.Sprintf(msg, args...))
	})

	e.oscHistory = osclog.NewHistory(oscHistoryCapacity)
	e.loggedInbound = osclog.NewTap(e.inbound, oscLogListener{e: e, history: e.oscHistory})

	if e.dsp == nil {
		replyWriter := replypath.NewSequencedWriter(e.outbound)
		e.dsp = testengine.New(replyWriter)
	}

	e.replyReader = replypath.NewReplyReader(e.outbound, e.idMap, e.m, idTag, 5*time.Millisecond, replyListener{e})
	e.replyReader.SetPanicHandler(e.panicHandler)
	e.debugReader = replypath.NewDebugReader(e.debug, e.m, 5*time.Millisecond, debugListener{e})
	e.debugReader.SetPanicHandler(e.panicHandler)

	e.purgeCoord = purge.NewCoordinator(e.pre, e.direct, e.sched)

	e.pre.Start(ctx)
	e.replyReader.Start(ctx)
	e.debugReader.Start(ctx)
	e.startAudioLoop()

	e.mu.Lock()
	e.state = StateReady
	e.mu.Unlock()
	e.emit(EventReady, nil)
	return nil
}

// Metrics takes a synchronous snapshot of every counter, filling the ring
// peak fields from the rings directly since metrics.Set holds no ring
// references (spec.md §3's table assigns ring peaks to A/A'/A'' themselves).
func (e *Engine) Metrics() metrics.Snapshot {
	snap := e.m.Snapshot()
	snap.InboundRingPeak = e.inbound.Peak()
	snap.OutboundRingPeak = e.outbound.Peak()
	snap.DebugRingPeak = e.debug.Peak()
	return snap
}

// RecentOSC returns the last several OSC frames the audio thread
// consumed, oldest first, independent of whether anything is currently
// subscribed to EventOutOSC.
func (e *Engine) RecentOSC() []osclog.Entry {
	return e.oscHistory.Snapshot()
}

// Shutdown stops every background goroutine and returns the engine to
// StateUninitialised, emitting EventShutdown exactly once. Idempotent
// double-shutdown from StateUninitialised is a no-op, not an error.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.state == StateUninitialised {
		e.mu.Unlock()
		return nil
	}
	if err := requireState("Shutdown", e.state, StateReady, StateSuspended); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	e.stopAudioLoop()
	e.pre.Stop()
	e.replyReader.Stop()
	e.debugReader.Stop()

	e.mu.Lock()
	e.state = StateUninitialised
	e.mu.Unlock()
	e.emit(EventShutdown, nil)
	return nil
}

// Destroy is the terminal transition: it shuts down if still running, emits
// EventDestroy, then clears every listener. No further call succeeds.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.Shutdown(); err != nil {
		if _, ok := err.(*ErrWrongState); !ok {
			return err
		}
	}

	e.emit(EventDestroy, nil)

	e.mu.Lock()
	e.state = StateDestroyed
	e.mu.Unlock()
	e.clear()
	return nil
}

// requireReady returns an error unless the engine is currently ready;
// used by every API call that needs the pipeline running.
func (e *Engine) requireReady(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return requireState(op, e.state, StateReady)
}

func (e *Engine) writeDebug(msg string) {
	if e.debug == nil {
		return
	}
	_, _ = e.debug.Write([]byte(msg))
}
