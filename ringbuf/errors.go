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

// Package ringbuf implements a single-producer/single-consumer,
// length-prefixed byte ring buffer. Three instances back the core's
// transport: inbound (application to audio thread), outbound (audio thread
// to application), and debug (audio thread tap for observers).
package ringbuf

import "errors"

// ErrFull is returned by Write when the frame does not currently fit in the
// free space. The buffer is left unmodified; the caller decides whether to
// retry, queue, or report an overrun.
var ErrFull = errors.New("ringbuf: full")

// ErrEmpty is returned by Read when there is no complete frame available.
var ErrEmpty = errors.New("ringbuf: empty")

// ErrFrameTooLarge is returned by Write when the frame could never fit even
// against an empty buffer (length > capacity-4).
var ErrFrameTooLarge = errors.New("ringbuf: frame exceeds capacity")

// ErrCorrupt is returned by Read when the length prefix found at the tail
// describes a frame that runs past the writer's published head. This should
// never happen absent a producer/consumer protocol violation; it is
// surfaced rather than panicking so a caller can resynchronize (see
// Ring.RecoverCorrupt, which replypath's reader calls to scan forward for
// the next plausible frame boundary).
var ErrCorrupt = errors.New("ringbuf: corrupt frame")
