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

// Package testengine is an opaque stand-in DSP engine: just enough of the
// node-lifecycle reply protocol to drive enginesched, replypath, and idmap
// end to end in tests and the demo, per spec.md's explicit non-goal of a
// real DSP engine implementation. It understands node/group creation and
// teardown, the /n_set family (accepted without effect or reply), /sync, and synth-def/buffer load
// acknowledgement; anything else produces a /fail reply.
package testengine

import (
	"fmt"

	"github.com/scosc/core/osc"
)

// ReplyWriter is the audio-thread side of the reply path; satisfied by
// replypath.SequencedWriter.
type ReplyWriter interface {
	Write(payload []byte) error
}

// Engine tracks just enough per-node state (parent id) to answer /n_go and
// /n_end with a coherent, if simplified, node tree.
type Engine struct {
	reply ReplyWriter
	enc   osc.Encoder

	nodes map[int32]nodeState
}

type nodeState struct {
	parent  int32
	isGroup bool
}

// New builds an Engine that writes replies through reply.
func New(reply ReplyWriter) *Engine {
	return &Engine{reply: reply, nodes: make(map[int32]nodeState)}
}

// Dispatch implements enginesched.Dispatcher: decode, apply, reply.
func (e *Engine) Dispatch(payload []byte) error {
	p, err := osc.Decode(payload)
	if err != nil {
		return err
	}
	return e.handle(p)
}

func (e *Engine) handle(p osc.Packet) error {
	switch v := p.(type) {
	case *osc.Message:
		return e.handleMessage(v)
	case *osc.Bundle:
		for _, elem := range v.Elements {
			if err := e.handle(elem); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("testengine: unsupported packet type %T", p)
	}
}

func (e *Engine) handleMessage(m *osc.Message) error {
	switch m.Address {
	case "/s_new":
		return e.newNode(m, false)
	case "/g_new":
		return e.newNode(m, true)
	case "/n_free":
		return e.freeNode(m)
	case "/n_set", "/n_setn", "/n_map", "/n_run":
		return nil
	case "/sync":
		return e.sync(m)
	case "/d_recv":
		return e.done("/d_recv")
	case "/b_allocRead", "/b_alloc", "/b_read":
		return e.done(m.Address)
	default:
		return e.fail(m.Address, "unrecognized command")
	}
}

// newNode handles /s_new (defName, nodeID, addAction, targetID, ...) and
// /g_new (nodeID, addAction, targetID), replying /n_go with the new node
// parented under targetID and no siblings (this stand-in keeps no sibling
// order, only parentage).
func (e *Engine) newNode(m *osc.Message, isGroup bool) error {
	idPos := 1
	targetPos := 3
	if isGroup {
		idPos, targetPos = 0, 2
	}
	if len(m.Args) <= targetPos {
		return e.fail(m.Address, "missing arguments")
	}
	nodeID := m.Args[idPos].Int
	target := m.Args[targetPos].Int

	e.nodes[nodeID] = nodeState{parent: target, isGroup: isGroup}

	groupFlag := int32(0)
	if isGroup {
		groupFlag = 1
	}
	return e.reply.Write(e.encode(&osc.Message{
		Address: "/n_go",
		Args: []osc.Arg{
			osc.Int32Arg(nodeID),
			osc.Int32Arg(target),
			osc.Int32Arg(-1),
			osc.Int32Arg(-1),
			osc.Int32Arg(groupFlag),
			osc.Int32Arg(-1),
			osc.Int32Arg(-1),
		},
	}))
}

func (e *Engine) freeNode(m *osc.Message) error {
	if len(m.Args) < 1 {
		return e.fail(m.Address, "missing node id")
	}
	nodeID := m.Args[0].Int
	st, ok := e.nodes[nodeID]
	if !ok {
		return e.fail(m.Address, "no such node")
	}
	delete(e.nodes, nodeID)

	groupFlag := int32(0)
	if st.isGroup {
		groupFlag = 1
	}
	return e.reply.Write(e.encode(&osc.Message{
		Address: "/n_end",
		Args: []osc.Arg{
			osc.Int32Arg(nodeID),
			osc.Int32Arg(st.parent),
			osc.Int32Arg(-1),
			osc.Int32Arg(-1),
			osc.Int32Arg(groupFlag),
			osc.Int32Arg(-1),
			osc.Int32Arg(-1),
		},
	}))
}

func (e *Engine) sync(m *osc.Message) error {
	if len(m.Args) < 1 {
		return e.fail(m.Address, "missing sync id")
	}
	return e.reply.Write(e.encode(&osc.Message{
		Address: "/synced",
		Args:    []osc.Arg{osc.Int32Arg(m.Args[0].Int)},
	}))
}

func (e *Engine) done(command string) error {
	return e.reply.Write(e.encode(&osc.Message{
		Address: "/done",
		Args:    []osc.Arg{osc.StringArg(command)},
	}))
}

func (e *Engine) fail(command, reason string) error {
	return e.reply.Write(e.encode(&osc.Message{
		Address: "/fail",
		Args:    []osc.Arg{osc.StringArg(command), osc.StringArg(reason)},
	}))
}

func (e *Engine) encode(m *osc.Message) []byte {
	b, err := e.enc.EncodeMessage(m)
	if err != nil {
		panic(fmt.Sprintf("testengine: reply encode failed: %v", err))
	}
	return b
}
