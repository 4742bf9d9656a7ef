// Copyright 2025 Parker Lamb
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ir

import "fmt"

// NodeID is the index of a node in the arena of its trace.
// Identifiers are assigned in construction order, so the operands of a
// node always have identifiers strictly below its own and the graph is
// acyclic by construction.
type NodeID int

// Value identifies one output of a producer node. Values are the only
// way to reference the result of another node: they carry the arena
// identifier of the producer and an output index, never the node
// itself. A Value is a plain comparable handle with no ownership over
// the producer, whose lifetime belongs to the trace.
type Value struct {
	node NodeID
	out  int
}

// MakeValue returns the value identifying output out of node id.
// Most callers obtain values from Node.Output instead.
func MakeValue(id NodeID, out int) Value {
	return Value{node: id, out: out}
}

// NodeID returns the identifier of the producer node.
func (v Value) NodeID() NodeID {
	return v.node
}

// Output returns the output index within the producer node.
func (v Value) Output() int {
	return v.out
}

// String returns the value in the form "%3", or "%3.1" for outputs
// beyond the first.
func (v Value) String() string {
	if v.out == 0 {
		return fmt.Sprintf("%%%d", v.node)
	}
	return fmt.Sprintf("%%%d.%d", v.node, v.out)
}
