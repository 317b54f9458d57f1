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

// Package idmap maintains the bidirectional mapping between opaque 16-byte
// node identifiers and the 32-bit identifiers the synthesis engine expects,
// and rewrites OSC messages at the ring-buffer boundary in both directions.
package idmap

import (
	"sync"

	"github.com/google/uuid"
)

// NodeID is the opaque 16-byte application-facing node identifier.
type NodeID [16]byte

// NewNodeID generates a fresh random NodeID.
func NewNodeID() NodeID {
	return NodeID(uuid.New())
}

// String renders id in standard UUID form for logging.
func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

// reservedEngineIDs is the top of the engine's own reserved node-ID range;
// the allocator starts handing out identifiers above it.
const reservedEngineIDs = 1000

// Map is the live bidirectional identifier table. Writer: the pre-send
// rewriter, called from the application context on every outbound bundle.
// Reader: the reply-path rewriter, called from the reply-reader context.
// Per spec.md §5, this is the one cross-thread shared structure outside
// the rings and metrics, so it is guarded by a single mutex rather than
// split into a lock-free scheme — contention is bounded by node churn
// rate, not audio-thread rate (the audio thread never touches this map).
type Map struct {
	mu      sync.Mutex
	forward map[NodeID]int32
	reverse map[int32]NodeID
	next    int32
}

// New constructs an empty Map whose allocator starts just above the
// engine's reserved identifier range.
func New() *Map {
	return &Map{
		forward: make(map[NodeID]int32),
		reverse: make(map[int32]NodeID),
		next:    reservedEngineIDs,
	}
}

// LookupOrAllocate returns the engine-native id for id, allocating and
// recording a fresh one on first reference.
func (m *Map) LookupOrAllocate(id NodeID) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if eid, ok := m.forward[id]; ok {
		return eid
	}
	eid := m.next
	m.next++
	m.forward[id] = eid
	m.reverse[eid] = id
	return eid
}

// Reverse looks up the opaque NodeID for an engine-native id, as used when
// rewriting replies back to application form.
func (m *Map) Reverse(eid int32) (NodeID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.reverse[eid]
	return id, ok
}

// Remove drops the mapping for eid, called when a node-ended reply reports
// the node has finished, so long-lived sessions do not leak entries.
func (m *Map) Remove(eid int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.reverse[eid]; ok {
		delete(m.reverse, eid)
		delete(m.forward, id)
	}
}

// Len returns the number of live mappings, for metrics/diagnostics.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.forward)
}

// Reset clears every mapping in place and restarts the allocator, for the
// facade's reset/recover path. In place, not a fresh Map, because the
// direct writer and reply reader hold this *Map by pointer from Init and
// must observe the clear without being reconstructed.
func (m *Map) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forward = make(map[NodeID]int32)
	m.reverse = make(map[int32]NodeID)
	m.next = reservedEngineIDs
}
