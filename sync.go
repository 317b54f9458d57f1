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
	"fmt"
	"sync"

	"github.com/scosc/core/osc"
)

// syncWaiters tracks outstanding Sync(id) calls waiting for the matching
// /synced reply, the same rendezvous-channel shape purge.Coordinator uses
// for its engine acknowledgement.
type syncWaiters struct {
	mu      sync.Mutex
	pending map[int32]chan struct{}
}

func newSyncWaiters() *syncWaiters {
	return &syncWaiters{pending: make(map[int32]chan struct{})}
}

func (s *syncWaiters) register(id int32) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.pending[id] = ch
	return ch
}

func (s *syncWaiters) forget(id int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *syncWaiters) resolve(id int32) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Sync sends "/sync" id through the engine's round-trip primitive and
// blocks until the matching "/synced" reply arrives or ctx is done. Because
// messages ahead of it in the inbound ring are processed first by the
// engine-side scheduler, a Sync reply implies every prior submission has
// been applied.
func (e *Engine) Sync(ctx context.Context, id int32) error {
	if err := e.requireReady("Sync"); err != nil {
		return err
	}

	ch := e.syncs.register(id)
	if err := e.direct.Send(&osc.Message{Address: "/sync", Args: []osc.Arg{osc.Int32Arg(id)}}, 0, ""); err != nil {
		e.syncs.forget(id)
		return err
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		e.syncs.forget(id)
		return fmt.Errorf("scosc: sync(%d): %w", id, ctx.Err())
	}
}
