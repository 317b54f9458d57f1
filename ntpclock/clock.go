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

// Package ntpclock maintains the mapping from the process's monotonic clock
// to NTP-seconds-since-1900, published once at engine init and read by every
// thread without locking.
package ntpclock

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/scosc/core/osc"
)

// Clock holds a monotonic-to-NTP offset, re-established on (re)init and
// read from any goroutine via a single atomic load. The stored value is the
// IEEE-754 bit pattern of a float64 offset in seconds (monotonic + offset =
// NTP-seconds-since-1900), since Go has no atomic.Float64 in the module's
// Go version — the same bit-reinterpretation trick osc uses for wire floats.
type Clock struct {
	offsetBits uint64 // atomic
	epoch      time.Time
	generation uint32 // atomic; bumped on every Init
}

// New constructs a Clock anchored to the current wall-clock time.
func New() *Clock {
	c := &Clock{epoch: time.Now()}
	c.Init()
	return c
}

// Init (re)establishes the offset: ntp_start_offset = current_ntp_seconds -
// monotonic_now_seconds. Called once at engine init and again whenever the
// engine is reinitialised after recover/reset, per the design's
// "re-anchored or dropped" rule for scheduled events spanning a reinit.
func (c *Clock) Init() {
	nowNTP := unixToNTP(float64(time.Now().UnixNano()) / 1e9)
	offset := nowNTP - c.monotonicNowSeconds()
	atomic.StoreUint64(&c.offsetBits, math.Float64bits(offset))
	atomic.AddUint32(&c.generation, 1)
}

// Generation returns a counter bumped every time Init re-anchors the clock,
// so a caller holding a deadline computed earlier can detect a re-anchor.
// No other package in this module reads it.
func (c *Clock) Generation() uint32 { return atomic.LoadUint32(&c.generation) }

// monotonicNowSeconds returns seconds elapsed since c.epoch using the
// monotonic reading embedded in time.Time by time.Now(); Since subtracts
// monotonic readings when both operands carry one, so this never observes
// wall-clock adjustments.
func (c *Clock) monotonicNowSeconds() float64 {
	return time.Since(c.epoch).Seconds()
}

// NowNTP returns the current time as NTP-seconds-since-1900, by adding the
// published offset to the monotonic clock. Safe to call from the audio
// context: one atomic load, one time.Since, no allocation.
func (c *Clock) NowNTP() float64 {
	offset := math.Float64frombits(atomic.LoadUint64(&c.offsetBits))
	return c.monotonicNowSeconds() + offset
}

// NowTimetag returns the current time as an osc.Timetag.
func (c *Clock) NowTimetag() osc.Timetag {
	return osc.NewTimetag(c.NowNTP())
}

// Offset returns the currently published monotonic-to-NTP offset, in
// seconds, mainly for diagnostics and tests.
func (c *Clock) Offset() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.offsetBits))
}

const ntpUnixEpochDelta = 2208988800

// unixToNTP converts Unix-epoch seconds to NTP-epoch (1900-01-01) seconds.
func unixToNTP(unixSeconds float64) float64 {
	return unixSeconds + ntpUnixEpochDelta
}
