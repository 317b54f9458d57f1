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

package enginesched

// pendingEntry is a bundle held in the heap awaiting its block, referencing
// the slot its encoded bytes live in rather than owning them.
type pendingEntry struct {
	deadlineNTP float64
	sequence    uint64
	slot        int
	length      int
	index       int
}

// entryHeap orders by deadline, earliest first, ties broken by insertion
// order so same-deadline bundles dispatch in arrival order.
type entryHeap []*pendingEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].deadlineNTP != h[j].deadlineNTP {
		return h[i].deadlineNTP < h[j].deadlineNTP
	}
	return h[i].sequence < h[j].sequence
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*pendingEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
