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

// Package trace records lazy tensor operations into a graph.
//
// A trace owns one in-progress computation: the arena of nodes, the
// structural sharing table merging equal subexpressions, and the
// bindings of named parameters. Construction appends to the trace in
// program order and is logically single-threaded; independent traces
// share no state. Once construction is over, the trace and its nodes
// are immutable and safe to hand to other goroutines, for instance to
// a backend compiler. Cancelling a computation means dropping the
// trace, there is no per-node teardown.
package trace

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	ptfmt "github.com/parkerlamb/pytorch/base/fmt"
	"github.com/parkerlamb/pytorch/base/ordered"
	"github.com/parkerlamb/pytorch/ir"
)

// Trace is the builder and owner of one graph.
type Trace struct {
	nodes       []*ir.Node
	interned    map[uint64][]*ir.Node
	share       bool
	params      *ordered.Map[string, ir.Value]
	annotations map[ir.NodeID]any
}

var _ ir.Builder = (*Trace)(nil)

// Option configures a trace.
type Option func(*Trace)

// WithoutSharing disables structural sharing: every construction
// allocates a fresh node, even when a structurally equal node already
// exists in the trace.
func WithoutSharing() Option {
	return func(t *Trace) {
		t.share = false
	}
}

// New returns an empty trace. Structural sharing is enabled unless
// disabled with WithoutSharing.
func New(opts ...Option) *Trace {
	t := &Trace{
		interned:    make(map[uint64][]*ir.Node),
		share:       true,
		params:      ordered.NewMap[string, ir.Value](),
		annotations: make(map[ir.NodeID]any),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewNode returns a node of kind applied to operands. Every operand
// must identify an existing output of a node of this trace. With
// sharing enabled and the kind not opaque, a structurally equal node
// already in the trace is returned instead of a new one, so repeated
// identical subexpressions collapse into one node.
func (t *Trace) NewNode(kind ir.Kind, operands []ir.Value) (*ir.Node, error) {
	n, err := ir.NewNode(kind, ir.NodeID(len(t.nodes)), operands)
	if err != nil {
		return nil, err
	}
	for _, op := range n.Operands() {
		producer := t.nodes[op.NodeID()]
		if op.Output() < 0 || op.Output() >= producer.Kind().Outputs() {
			return nil, errors.Errorf("operand %s: %s has %d output(s), no output %d", op, producer.Kind().Name(), producer.Kind().Outputs(), op.Output())
		}
	}
	shared := t.share && !kind.Opaque()
	if shared {
		for _, prev := range t.interned[n.Hash()] {
			if prev.StructuralEquals(n) {
				return prev, nil
			}
		}
	}
	t.nodes = append(t.nodes, n)
	if shared {
		t.interned[n.Hash()] = append(t.interned[n.Hash()], n)
	}
	return n, nil
}

// Node returns the node with the given identifier, or nil if the
// identifier does not belong to this trace.
func (t *Trace) Node(id ir.NodeID) *ir.Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// NumNodes returns the number of nodes in the trace.
func (t *Trace) NumNodes() int {
	return len(t.nodes)
}

// BindParam associates a name with a value, usually the output of a
// parameter node. Binding order is preserved.
func (t *Trace) BindParam(name string, v ir.Value) error {
	if _, ok := t.params.Load(name); ok {
		return errors.Errorf("parameter %s already bound in the trace", name)
	}
	t.params.Store(name, v)
	return nil
}

// Param returns the value bound to a parameter name.
func (t *Trace) Param(name string) (ir.Value, bool) {
	return t.params.Load(name)
}

// Params returns an iterator over the parameter bindings, in binding
// order.
func (t *Trace) Params() func(func(string, ir.Value) bool) {
	return t.params.Iter()
}

// Annotate attaches a payload to a node. Annotations carry the
// out-of-band payloads of opaque leaves (parameter shapes, constant
// buffers): they are not part of a node's structural identity and
// never contribute to its hash.
func (t *Trace) Annotate(id ir.NodeID, payload any) {
	t.annotations[id] = payload
}

// Annotation returns the payload attached to a node.
func (t *Trace) Annotation(id ir.NodeID) (any, bool) {
	payload, ok := t.annotations[id]
	return payload, ok
}

// PostOrder returns the nodes reachable from roots, operands before
// their consumers, each node exactly once.
func (t *Trace) PostOrder(roots ...ir.Value) []*ir.Node {
	visited := make(map[ir.NodeID]bool)
	var order []*ir.Node
	var visit func(id ir.NodeID)
	visit = func(id ir.NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		n := t.Node(id)
		if n == nil {
			return
		}
		for _, op := range n.Operands() {
			visit(op.NodeID())
		}
		order = append(order, n)
	}
	for _, root := range roots {
		visit(root.NodeID())
	}
	return order
}

// String returns a dump of the trace, one node per line.
func (t *Trace) String() string {
	var s strings.Builder
	fmt.Fprintf(&s, "trace of %d node(s) {\n", len(t.nodes))
	var body strings.Builder
	for _, n := range t.nodes {
		body.WriteString(n.String())
		body.WriteString("\n")
	}
	for name, v := range t.params.Iter() {
		fmt.Fprintf(&body, "param %s = %s\n", name, v)
	}
	s.WriteString(ptfmt.Indent(body.String()))
	s.WriteString("}")
	return s.String()
}
