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

import "container/heap"

// scheduledEvent is the prescheduler's heap element: a bundle waiting for
// its deadline, keyed on deadline_ntp with sequence as the tie-break.
type scheduledEvent struct {
	deadlineNTP float64
	sequence    uint64
	sessionID   uint32
	tag         string
	payload     []byte
	cancelled   bool
	retries     int // bumped each time release hits ring backpressure, after popping
	index       int // heap.Interface bookkeeping
}

// eventHeap is a container/heap min-heap ordered by (deadlineNTP, sequence).
type eventHeap []*scheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].deadlineNTP != h[j].deadlineNTP {
		return h[i].deadlineNTP < h[j].deadlineNTP
	}
	return h[i].sequence < h[j].sequence
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*scheduledEvent)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

var _ heap.Interface = (*eventHeap)(nil)
