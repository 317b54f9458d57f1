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

package main

import "github.com/scosc/core/osc"

// demoSynthDef stands in for a compiled .scsyndef blob; the stand-in engine
// (testengine) never parses or keeps it; it answers /d_recv with /done.
var demoSynthDef = []byte{0x53, 0x43, 0x67, 0x66, 0x00, 0x00, 0x00, 0x02}

// demoNodeArgs builds the (defName, nodeID, addAction, targetID) argument
// tuple /s_new expects, targeting the default group.
func demoNodeArgs() []osc.Arg {
	return []osc.Arg{
		osc.StringArg("sine"),
		osc.Int32Arg(1000),
		osc.Int32Arg(0),
		osc.Int32Arg(0),
	}
}
