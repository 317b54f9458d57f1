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

package idmap

import "github.com/scosc/core/osc"

// lifecycleEntry names which argument positions of a reply message carry
// node identifiers, by role. -1 means the role does not apply to this
// address. Group-only roles (head/tail) are only rewritten when the
// message's isGroup flag (groupFlagPos) is present and true.
type lifecycleEntry struct {
	primary, parent, prev, next int
	groupFlagPos, head, tail    int
	removeOnReply               bool
}

const absent = -1

// lifecycleAddresses enumerates every reply address whose arguments carry
// engine-native node identifiers needing reverse rewriting, and the
// position of each identifier role within that address's argument list.
// Coverage is intentionally complete across SuperCollider's node-lifecycle
// and node-query reply family, not partial.
var lifecycleAddresses = map[string]lifecycleEntry{
	"/n_go": {
		primary: 0, parent: 1, prev: 2, next: 3,
		groupFlagPos: 4, head: 5, tail: 6,
	},
	"/n_end": {
		primary: 0, parent: 1, prev: 2, next: 3,
		groupFlagPos: 4, head: 5, tail: 6,
		removeOnReply: true,
	},
	"/n_off": {
		primary: 0, parent: absent, prev: absent, next: absent,
		groupFlagPos: absent, head: absent, tail: absent,
	},
	"/n_on": {
		primary: 0, parent: absent, prev: absent, next: absent,
		groupFlagPos: absent, head: absent, tail: absent,
	},
	"/n_move": {
		primary: 0, parent: 1, prev: 2, next: 3,
		groupFlagPos: absent, head: absent, tail: absent,
	},
	"/n_info": {
		primary: 0, parent: 1, prev: 2, next: 3,
		groupFlagPos: 4, head: 5, tail: 6,
	},
}

// RewriteOutbound walks p and replaces every arg tagged KindIdentifier with
// the engine-native int32 the map assigns it, allocating on first
// reference. Call this on every bundle immediately before it is written to
// the inbound ring; it is the only place the identifier extension tag is
// consumed, per spec.md §6 ("MUST NEVER appear on the wire to the engine").
func (m *Map) RewriteOutbound(p osc.Packet) {
	switch v := p.(type) {
	case *osc.Message:
		for i := range v.Args {
			a := &v.Args[i]
			if a.Kind == osc.KindIdentifier {
				eid := m.LookupOrAllocate(NodeID(a.ID))
				*a = osc.Int32Arg(eid)
			}
		}
	case *osc.Bundle:
		for _, elem := range v.Elements {
			m.RewriteOutbound(elem)
		}
	}
}

// RewriteInbound walks p (a decoded reply read from the outbound ring) and,
// for addresses in lifecycleAddresses, replaces the known node-identifier
// argument positions with their opaque NodeID form wherever the reverse
// mapping has an entry. Positions with no mapping entry are left as raw
// int32 so the application at least sees the engine's numeric id rather
// than losing the field. On /n_end, the mapping entry for the primary id is
// removed after rewriting so long-lived sessions do not leak it.
func (m *Map) RewriteInbound(p osc.Packet) {
	switch v := p.(type) {
	case *osc.Message:
		m.rewriteInboundMessage(v)
	case *osc.Bundle:
		for _, elem := range v.Elements {
			m.RewriteInbound(elem)
		}
	}
}

func (m *Map) rewriteInboundMessage(msg *osc.Message) {
	entry, ok := lifecycleAddresses[msg.Address]
	if !ok {
		return
	}

	isGroup := false
	if entry.groupFlagPos != absent && entry.groupFlagPos < len(msg.Args) {
		isGroup = msg.Args[entry.groupFlagPos].Int != 0
	}

	var primaryEID int32
	havePrimary := false
	positions := []int{entry.primary, entry.parent, entry.prev, entry.next}
	if isGroup {
		positions = append(positions, entry.head, entry.tail)
	}
	for _, pos := range positions {
		if pos == absent || pos >= len(msg.Args) {
			continue
		}
		a := &msg.Args[pos]
		if a.Kind != osc.KindInt32 {
			continue
		}
		if pos == entry.primary {
			primaryEID = a.Int
			havePrimary = true
		}
		if id, found := m.Reverse(a.Int); found {
			*a = osc.IdentifierArg([16]byte(id))
		}
	}

	if entry.removeOnReply && havePrimary {
		m.Remove(primaryEID)
	}
}
