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

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrArityMismatch reports a construction or a clone with an
	// operand count different from the fixed arity of the operation.
	ErrArityMismatch = errors.New("operand count does not match the operation arity")

	// ErrCyclicReference reports an operand through which a node would
	// reach itself. A conforming builder can only hand out values of
	// nodes it has already constructed, so this error is a fatal
	// programming error, not a recoverable condition.
	ErrCyclicReference = errors.New("operand would create a cycle")
)

// Node is one operation in the graph: an operation kind applied to an
// ordered list of operand values. A node is immutable once
// constructed. Optimization passes rewrite graphs by building new
// nodes with Clone, never by changing operands in place, so consumers
// can hold a node reference for as long as the trace lives.
type Node struct {
	id       NodeID
	kind     Kind
	operands []Value
	hash     uint64
}

// NewNode constructs the node of a kind applied to operands, to be
// stored at index id of the arena. The operand count must match the
// arity of the kind, and every operand must be produced by a node
// constructed before this one.
//
// Construction is O(arity): shapes and data types of the operand
// producers are not inspected here, validation of those is deferred to
// the inference and lowering collaborators. Either construction fully
// succeeds or no node is created.
func NewNode(kind Kind, id NodeID, operands []Value) (*Node, error) {
	if len(operands) != kind.Arity() {
		return nil, errors.Wrapf(ErrArityMismatch, "%s expects %d operand(s), got %d", kind.Name(), kind.Arity(), len(operands))
	}
	for _, op := range operands {
		if op.node < 0 || op.node >= id {
			return nil, errors.Wrapf(ErrCyclicReference, "operand %s of %s is not anterior to node %%%d", op, kind.Name(), id)
		}
	}
	ops := make([]Value, len(operands))
	copy(ops, operands)
	return &Node{
		id:       id,
		kind:     kind,
		operands: ops,
		hash:     hashNode(kind, ops),
	}, nil
}

// hashNode computes the structural hash of a node: a pure function of
// the kind and the identity of each operand. FNV is stable across
// processes, so equal graphs hash equally from one run to the next.
func hashNode(kind Kind, operands []Value) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(kind))
	h.Write(buf[:])
	for _, op := range operands {
		binary.LittleEndian.PutUint64(buf[:], uint64(op.node))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(op.out))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// ID returns the arena identifier of the node.
func (n *Node) ID() NodeID {
	return n.id
}

// Kind returns the operation of the node.
func (n *Node) Kind() Kind {
	return n.kind
}

// Operands returns the operand values in operation order.
// Callers must not modify the returned slice.
func (n *Node) Operands() []Value {
	return n.operands
}

// Hash returns the structural hash of the node. The hash is computed
// once at construction and never changes.
func (n *Node) Hash() uint64 {
	return n.hash
}

// StructuralEquals reports whether both nodes apply the same operation
// to the same operand values. Structurally equal nodes are
// interchangeable and may be shared.
func (n *Node) StructuralEquals(other *Node) bool {
	if n.kind != other.kind || len(n.operands) != len(other.operands) {
		return false
	}
	for i, op := range n.operands {
		if op != other.operands[i] {
			return false
		}
	}
	return true
}

// Output returns the value identifying output i of the node.
func (n *Node) Output(i int) Value {
	if i < 0 || i >= n.kind.Outputs() {
		panic(fmt.Sprintf("ir: %s has %d output(s), no output %d", n.kind.Name(), n.kind.Outputs(), i))
	}
	return Value{node: n.id, out: i}
}

// Outputs returns the values produced by the node.
func (n *Node) Outputs() []Value {
	outs := make([]Value, n.kind.Outputs())
	for i := range outs {
		outs[i] = Value{node: n.id, out: i}
	}
	return outs
}

// Clone returns a node of the same kind with the operands replaced.
// The receiver is left untouched; the builder may return an existing
// structurally equal node instead of a fresh one. Clone is the single
// rewrite primitive offered to optimization passes.
func (n *Node) Clone(b Builder, operands []Value) (*Node, error) {
	if len(operands) != len(n.operands) {
		return nil, errors.Wrapf(ErrArityMismatch, "cannot clone %s: got %d operand(s), want %d", n.kind.Name(), len(operands), len(n.operands))
	}
	return b.NewNode(n.kind, operands)
}

// String returns the node in the form "%3 = masked_scatter(%0, %1, %2)".
func (n *Node) String() string {
	args := make([]string, len(n.operands))
	for i, op := range n.operands {
		args[i] = op.String()
	}
	return fmt.Sprintf("%%%d = %s(%s)", n.id, n.kind.Name(), strings.Join(args, ", "))
}
