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
	"github.com/scosc/core/osc"
	"github.com/scosc/core/osclog"
)

// oscLogListener adapts the engine to osclog.Listener, recording every
// frame the audio thread consumed into the rolling history and re-emitting
// it as EventOutOSC.
type oscLogListener struct {
	e       *Engine
	history *osclog.History
}

func (l oscLogListener) OnFrame(entry osclog.Entry) {
	l.history.OnFrame(entry)
	l.e.emit(EventOutOSC, OutOSCPayload{
		Bytes:    entry.Bytes,
		SourceID: entry.SourceID,
		Sequence: entry.Sequence,
	})
}

// replyListener adapts the engine to replypath.ReplyListener, re-emitting
// each decoded, identifier-rewritten reply as EventIn and resolving any
// pending Sync waiter on /synced.
type replyListener struct{ e *Engine }

func (l replyListener) OnReply(p osc.Packet) {
	if msg, ok := p.(*osc.Message); ok && msg.Address == "/synced" && len(msg.Args) == 1 {
		l.e.syncs.resolve(msg.Args[0].Int)
	}
	l.e.emit(EventIn, p)
}

// debugListener adapts the engine to replypath.DebugListener, re-emitting
// each diagnostic frame as EventDebug.
type debugListener struct{ e *Engine }

func (l debugListener) OnDebug(payload []byte) {
	l.e.emit(EventDebug, string(payload))
}
