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

import "fmt"

// State is one node of the facade's lifecycle state machine, per spec.md
// §4.K: uninitialised -> initialising -> ready -> {suspended -> ready,
// shutdown -> uninitialised, destroy -> terminal}. reset is a transient
// action, not a resting state: it always lands back on ready.
type State int32

const (
	StateUninitialised State = iota
	StateInitialising
	StateReady
	StateSuspended
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "uninitialised"
	case StateInitialising:
		return "initialising"
	case StateReady:
		return "ready"
	case StateSuspended:
		return "suspended"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrWrongState is returned when an operation is attempted from a state
// that cannot reach it directly.
type ErrWrongState struct {
	Op       string
	Have     State
	Expected []State
}

func (e *ErrWrongState) Error() string {
	return fmt.Sprintf("scosc: %s: invalid from state %s (expected one of %v)", e.Op, e.Have, e.Expected)
}

func (e *ErrWrongState) expects(s State) bool {
	for _, want := range e.Expected {
		if want == s {
			return true
		}
	}
	return false
}

// requireState returns ErrWrongState if the engine's current state (already
// held under e.mu by the caller) isn't one of want.
func requireState(op string, have State, want ...State) error {
	err := &ErrWrongState{Op: op, Have: have, Expected: want}
	if err.expects(have) {
		return nil
	}
	return err
}
