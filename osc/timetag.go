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

package osc

// Timetag is an 8-byte OSC NTP timestamp: 32-bit seconds since
// 1900-01-01 UTC in the high word, 32-bit fractional seconds in the low word.
type Timetag uint64

// Immediate is the distinguished "dispatch at once" timetag: all-zero
// except the low bit of the fractional part.
const Immediate Timetag = 1

// ntpEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// NewTimetag builds a Timetag from NTP seconds (since 1900) as a float64.
func NewTimetag(ntpSeconds float64) Timetag {
	if ntpSeconds <= 0 {
		return 0
	}
	sec := uint32(ntpSeconds)
	frac := uint32((ntpSeconds - float64(sec)) * 4294967296.0)
	return Timetag(uint64(sec)<<32 | uint64(frac))
}

// Seconds returns the 32-bit NTP seconds field (since 1900-01-01 UTC).
func (t Timetag) Seconds() uint32 { return uint32(t >> 32) }

// Frac returns the 32-bit fractional-seconds field.
func (t Timetag) Frac() uint32 { return uint32(t) }

// IsImmediate reports whether t is the OSC "immediate" sentinel.
func (t Timetag) IsImmediate() bool { return t == Immediate }

// NTPSeconds returns t as floating-point seconds since the NTP epoch.
func (t Timetag) NTPSeconds() float64 {
	return float64(t.Seconds()) + float64(t.Frac())/4294967296.0
}

// UnixSeconds returns t as floating-point seconds since the Unix epoch.
func (t Timetag) UnixSeconds() float64 {
	return t.NTPSeconds() - ntpEpochOffset
}

// TimetagFromUnixSeconds converts Unix-epoch seconds to a Timetag.
func TimetagFromUnixSeconds(unixSeconds float64) Timetag {
	return NewTimetag(unixSeconds + ntpEpochOffset)
}
