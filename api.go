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
	"fmt"
	"os"

	"github.com/scosc/core/cache"
	"github.com/scosc/core/dispatch"
	"github.com/scosc/core/osc"
)

// SendOptions carries the routing metadata spec.md §6's sendOSC takes
// alongside the bytes: the cancellation session/tag a future-timetagged
// bundle gets registered under if it ends up on the prescheduler.
type SendOptions struct {
	SessionID uint32
	Tag       string
}

// Send is the convenience constructor form of spec.md §6's send(address,
// args...): build an immediate message and submit it.
func (e *Engine) Send(address string, args ...osc.Arg) error {
	return e.SendPacket(&osc.Message{Address: address, Args: args}, SendOptions{})
}

// SendOSC decodes bytes and submits the result, the literal shape of
// spec.md §6's sendOSC(bytes, {session, tag, target_ntp}) (target_ntp
// travels inside the bundle's own timetag once decoded).
func (e *Engine) SendOSC(raw []byte, opts SendOptions) error {
	p, err := osc.Decode(raw)
	if err != nil {
		return err
	}
	return e.SendPacket(p, opts)
}

// SendPacket is the shared submission path both Send and SendOSC funnel
// through: validate state, count it, and hand it to the direct writer (E).
func (e *Engine) SendPacket(p osc.Packet, opts SendOptions) error {
	if err := e.requireReady("Send"); err != nil {
		return err
	}
	if err := e.direct.Send(p, opts.SessionID, opts.Tag); err != nil {
		return err
	}
	e.m.MessagesSent++
	return nil
}

// Cancel cancels every prescheduler entry matching sel, returning the count
// removed. Effect is visible to the prescheduler within one tick.
func (e *Engine) Cancel(sel dispatch.CancelSelector) int {
	if e.pre == nil {
		return 0
	}
	return e.pre.Cancel(sel)
}

// CancelAll cancels every pending prescheduler entry.
func (e *Engine) CancelAll() int {
	if e.pre == nil {
		return 0
	}
	return e.pre.CancelAll()
}

// Purge runs the coordinated, acknowledged hard-stop across F and G.
func (e *Engine) Purge(ctx context.Context) error {
	if err := e.requireReady("Purge"); err != nil {
		return err
	}
	return e.purgeCoord.Purge(ctx)
}

// LoadSynthDef caches name/bytes and submits a "/d_recv" load, replaying
// automatically on a full recover.
func (e *Engine) LoadSynthDef(name string, bytes []byte) error {
	return e.loadSynthDef(cache.SynthDef{Name: name, Bytes: bytes})
}

// LoadSynthDefFromPath sanitizes path against the engine's sample base,
// reads it, and loads it the same way as LoadSynthDef.
func (e *Engine) LoadSynthDefFromPath(name, path string) error {
	resolved, err := cache.SanitizePath(e.sampleBase, path)
	if err != nil {
		return err
	}
	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("scosc: load synth-def %q: %w", name, err)
	}
	return e.loadSynthDef(cache.SynthDef{Name: name, Bytes: bytes})
}

func (e *Engine) loadSynthDef(def cache.SynthDef) error {
	if err := e.requireReady("LoadSynthDef"); err != nil {
		return err
	}
	e.emit(EventLoadStart, LoadPayload{Kind: "synthdef", Name: def.Name})
	e.cache.PutSynthDef(def)

	err := e.direct.Send(&osc.Message{
		Address: "/d_recv",
		Args:    []osc.Arg{osc.StringArg(def.Name), osc.BlobArg(def.Bytes)},
	}, 0, "")
	e.emit(EventLoadDone, LoadPayload{Kind: "synthdef", Name: def.Name, Err: err})
	return err
}

// LoadSample caches bufferID/bytes and submits a buffer load, replaying
// automatically on a full recover.
func (e *Engine) LoadSample(bufferID int32, bytes []byte, startFrame, numFrames int) error {
	return e.loadSample(cache.Sample{BufferID: bufferID, Bytes: bytes, StartFrame: startFrame, NumFrames: numFrames})
}

// LoadSampleFromPath sanitizes path against the engine's sample base and
// submits a "/b_allocRead" load by path (no bytes are read locally; the
// DSP engine reads the file itself, matching SuperCollider's own protocol).
func (e *Engine) LoadSampleFromPath(bufferID int32, path string, startFrame, numFrames int) error {
	resolved, err := cache.SanitizePath(e.sampleBase, path)
	if err != nil {
		return err
	}
	return e.loadSample(cache.Sample{BufferID: bufferID, Path: resolved, StartFrame: startFrame, NumFrames: numFrames})
}

func (e *Engine) loadSample(s cache.Sample) error {
	if err := e.requireReady("LoadSample"); err != nil {
		return err
	}
	name := fmt.Sprintf("buffer:%d", s.BufferID)
	e.emit(EventLoadStart, LoadPayload{Kind: "sample", Name: name})
	e.cache.PutSample(s)

	err := e.sendSampleLoad(s)
	e.emit(EventLoadDone, LoadPayload{Kind: "sample", Name: name, Err: err})
	return err
}

func (e *Engine) sendSampleLoad(s cache.Sample) error {
	if s.Path != "" {
		return e.direct.Send(&osc.Message{
			Address: "/b_allocRead",
			Args: []osc.Arg{
				osc.Int32Arg(s.BufferID),
				osc.StringArg(s.Path),
				osc.Int32Arg(int32(s.StartFrame)),
				osc.Int32Arg(int32(s.NumFrames)),
			},
		}, 0, "")
	}
	return e.direct.Send(&osc.Message{
		Address: "/b_alloc",
		Args: []osc.Arg{
			osc.Int32Arg(s.BufferID),
			osc.BlobArg(s.Bytes),
			osc.Int32Arg(int32(s.StartFrame)),
			osc.Int32Arg(int32(s.NumFrames)),
		},
	}, 0, "")
}
