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

// Package osc implements the OSC 1.0 wire format: message and bundle
// decoding, a zero-allocation encode fast path for the hot sender, and
// an allocating general encoder for interactive / low-rate calls.
package osc

import "fmt"

// ErrorKind enumerates the single "malformed OSC" error kind's causes.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrTruncated
	ErrUnknownType
	ErrBadAddress
	ErrNonASCII
	ErrBadPadding
	ErrBufferTooSmall
)

var errorKindNames = [...]string{
	ErrUnknown:        "unknown",
	ErrTruncated:      "truncated frame",
	ErrUnknownType:    "unknown type tag",
	ErrBadAddress:     "address not starting with /",
	ErrNonASCII:       "non-ASCII byte inside address",
	ErrBadPadding:     "string not null-padded to 4 bytes",
	ErrBufferTooSmall: "destination buffer too small",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "osc error"
}

// Error is the single malformed-OSC error kind surfaced by this package.
// It always carries the byte offset into the input at which decoding failed.
type Error struct {
	Kind   ErrorKind
	Offset int
	msg    string
	err    error
}

func newError(kind ErrorKind, offset int, msg string) *Error {
	return &Error{Kind: kind, Offset: offset, msg: msg}
}

func (e *Error) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("osc: %s at offset %d: %s", e.Kind, e.Offset, e.msg)
	}
	return fmt.Sprintf("osc: %s at offset %d", e.Kind, e.Offset)
}

// Unwrap supports errors.Is/As against a wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether err is an *Error with the same Kind.
func (e *Error) Is(err error) bool {
	t, ok := err.(*Error)
	return ok && t.Kind == e.Kind
}
