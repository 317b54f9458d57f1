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

import "sync"

// Event names the exact set spec.md §4.K enumerates.
type Event string

const (
	EventReady      Event = "ready"
	EventShutdown   Event = "shutdown"
	EventDestroy    Event = "destroy"
	EventIn         Event = "in"
	EventOutOSC     Event = "out:osc"
	EventDebug      Event = "debug"
	EventLoadStart  Event = "loading:start"
	EventLoadDone   Event = "loading:complete"
	EventRecoverStart Event = "recover:start"

	EventAudioStateChange Event = "audiocontext:statechange"
	EventAudioResumed     Event = "audiocontext:resumed"
	EventAudioSuspended   Event = "audiocontext:suspended"
	EventAudioInterrupted Event = "audiocontext:interrupted"
)

// OutOSCPayload is the payload of EventOutOSC.
type OutOSCPayload struct {
	Bytes    []byte
	SourceID uint32
	Sequence uint64
}

// LoadPayload is the payload of EventLoadStart/EventLoadDone.
type LoadPayload struct {
	Kind string // "synthdef" or "sample"
	Name string
	Err  error // set only on EventLoadDone, when the load failed
}

type listenerEntry struct {
	id uint64
	fn func(payload any)
}

// emitter is a minimal typed pub/sub table, grounded on gopool's
// override-a-default-handler shape but for N handlers instead of one:
// every listener registered via On is called synchronously, in
// registration order, from whatever goroutine emits.
type emitter struct {
	mu        sync.RWMutex
	listeners map[Event][]listenerEntry
	nextID    uint64
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[Event][]listenerEntry)}
}

// On subscribes fn to event, returning an unsubscribe func.
func (e *emitter) On(event Event, fn func(payload any)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[event] = append(e.listeners[event], listenerEntry{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		entries := e.listeners[event]
		for i, le := range entries {
			if le.id == id {
				e.listeners[event] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

func (e *emitter) emit(event Event, payload any) {
	e.mu.RLock()
	entries := append([]listenerEntry(nil), e.listeners[event]...)
	e.mu.RUnlock()

	for _, le := range entries {
		le.fn(payload)
	}
}

// clear drops every listener for every event, per destroy's "listeners do
// not survive destroy" rule.
func (e *emitter) clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[Event][]listenerEntry)
}
