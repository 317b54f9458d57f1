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

package ntpclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowNTPTracksWallClockWithinTolerance(t *testing.T) {
	c := New()
	wantUnix := float64(time.Now().UnixNano()) / 1e9
	got := c.NowNTP() - ntpUnixEpochDelta
	assert.InDelta(t, wantUnix, got, 0.05)
}

func TestNowNTPAdvancesMonotonically(t *testing.T) {
	c := New()
	first := c.NowNTP()
	time.Sleep(5 * time.Millisecond)
	second := c.NowNTP()
	assert.Greater(t, second, first)
}

func TestInitBumpsGeneration(t *testing.T) {
	c := New()
	g1 := c.Generation()
	c.Init()
	assert.Equal(t, g1+1, c.Generation())
}

func TestInitReanchorsToWallClock(t *testing.T) {
	c := New()
	time.Sleep(5 * time.Millisecond)
	c.Init()
	// Immediately after re-anchoring, NowNTP should again track wall clock.
	wantUnix := float64(time.Now().UnixNano()) / 1e9
	got := c.NowNTP() - ntpUnixEpochDelta
	assert.InDelta(t, wantUnix, got, 0.05)
}
