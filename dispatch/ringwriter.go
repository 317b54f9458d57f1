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

package dispatch

// RingWriter is the inbound-ring write surface dispatch depends on.
// Satisfied directly by ringbuf.Ring; kept as an interface rather than a
// concrete type so an out-of-process forwarder could satisfy it later
// without changing DirectWriter or Prescheduler.
type RingWriter interface {
	Write(payload []byte) (int, error)
}
