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

import "encoding/binary"

// PeekTimetag reports whether b is an OSC bundle and, if so, its timetag,
// without decoding any element. It is intended for callers on allocation-
// sensitive paths (enginesched's intake phase) that only need to classify a
// frame, not parse it.
func PeekTimetag(b []byte) (tag Timetag, isBundle bool) {
	if len(b) < 16 || string(b[:8]) != bundleTag {
		return 0, false
	}
	return Timetag(binary.BigEndian.Uint64(b[8:16])), true
}

// PeekAddress reports the address of b if it is a plain message (not a
// bundle), without decoding its arguments. Used to recognize sentinel
// messages (e.g. the purge protocol's) cheaply on the intake hot path.
func PeekAddress(b []byte) (addr string, ok bool) {
	if len(b) >= 8 && string(b[:8]) == bundleTag {
		return "", false
	}
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	if i == 0 || i >= len(b) {
		return "", false
	}
	return string(b[:i]), true
}
