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

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePathJoinsRelativeInputOntoBase(t *testing.T) {
	got, err := SanitizePath("/srv/sounds", "kick.wav")
	require.NoError(t, err)
	assert.Equal(t, "/srv/sounds/kick.wav", got)
}

func TestSanitizePathRejectsDotDotTraversal(t *testing.T) {
	_, err := SanitizePath("/srv/sounds", "../../etc/passwd")
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestSanitizePathRejectsBackslashes(t *testing.T) {
	_, err := SanitizePath("/srv/sounds", `..\..\etc\passwd`)
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestSanitizePathRejectsAbsolutePathOutsideBase(t *testing.T) {
	_, err := SanitizePath("/srv/sounds", "/etc/passwd")
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestSanitizePathAllowsAbsolutePathInsideBase(t *testing.T) {
	got, err := SanitizePath("/srv/sounds", "/srv/sounds/kit/snare.wav")
	require.NoError(t, err)
	assert.Equal(t, "/srv/sounds/kit/snare.wav", got)
}

func TestSanitizePathDotSlashPrefixBypassesBase(t *testing.T) {
	got, err := SanitizePath("/srv/sounds", "./tmp/whatever.wav")
	require.NoError(t, err)
	assert.Equal(t, "tmp/whatever.wav", got)
}
