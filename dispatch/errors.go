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

// Package dispatch implements the direct-write fast path (E) and the
// prescheduler (F): together they decide, for every outbound bundle,
// whether to write straight to the inbound ring or to hold it on a
// min-heap until shortly before its deadline.
package dispatch

import "errors"

// ErrBackpressure is returned when the inbound ring currently has no room
// for the frame; the caller decides whether to retry.
var ErrBackpressure = errors.New("dispatch: ring backpressure")

// ErrTooLarge is returned when a frame could never fit the inbound ring,
// regardless of backpressure.
var ErrTooLarge = errors.New("dispatch: frame too large for ring")

// ErrPreschedulerFull is returned by Prescheduler.Submit when capacity is
// exhausted and no cancelled entries are available to evict.
var ErrPreschedulerFull = errors.New("dispatch: prescheduler at capacity")

// ErrNoPrescheduler is returned by DirectWriter.Send when a bundle needs
// the prescheduler but none was configured.
var ErrNoPrescheduler = errors.New("dispatch: no prescheduler configured")
