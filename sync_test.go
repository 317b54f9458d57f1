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

package scosc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSyncResolvesOnSyncedReply(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Sync(ctx, 42))
}

func TestSyncTimesOutOnContextCancel(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already done: no reply can possibly win the race
	err := e.Sync(ctx, 7)
	require.Error(t, err)
}

func TestSyncRejectsNonReadyState(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Suspend())

	err := e.Sync(context.Background(), 1)
	require.Error(t, err)
	var wrong *ErrWrongState
	require.ErrorAs(t, err, &wrong)
}

func TestEventInFiresForEveryReply(t *testing.T) {
	e := newTestEngine(t)

	seen := make(chan any, 4)
	e.On(EventIn, func(p any) { seen <- p })

	require.NoError(t, e.Send("/s_new"))
	select {
	case <-seen:
	case <-time.After(time.Second):
		t.Fatal("no reply observed for /s_new")
	}
}
