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

// Package cache holds the synth-def/sample cache the public facade replays
// on a full recover, and the path sanitization rule spec.md §6 states for
// sample/synth-def path inputs.
package cache

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned by SanitizePath for any input spec.md §6
// disallows: ".." segments, backslashes, or absolute paths escaping base.
var ErrUnsafePath = errors.New("cache: unsafe path")

// SanitizePath resolves input against base per spec.md §6: "..", and
// backslashes are rejected outright; an absolute path must fall under base
// unless it is prefixed with "./", which bypasses the base entirely (the
// documented escape hatch for callers who already resolved their own
// absolute path). Relative inputs are joined onto base and cleaned.
//
// No retrieved example repo performs sandboxed path joins — this is
// plain path/filepath plus strings, the idiomatic stdlib tool for it.
func SanitizePath(base, input string) (string, error) {
	if strings.Contains(input, "\\") {
		return "", ErrUnsafePath
	}
	if hasDotDotSegment(input) {
		return "", ErrUnsafePath
	}

	if strings.HasPrefix(input, "./") {
		return filepath.Clean(input[2:]), nil
	}

	if filepath.IsAbs(input) {
		cleaned := filepath.Clean(input)
		cleanBase := filepath.Clean(base)
		if cleaned != cleanBase && !strings.HasPrefix(cleaned, cleanBase+string(filepath.Separator)) {
			return "", ErrUnsafePath
		}
		return cleaned, nil
	}

	joined := filepath.Join(base, input)
	cleanBase := filepath.Clean(base)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return joined, nil
}

func hasDotDotSegment(p string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
