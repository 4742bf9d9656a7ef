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

// Package infer resolves the shapes and data types of graph values.
//
// Inference runs strictly after graph construction: a node is built
// from its kind and operands alone, and only when a consumer asks for
// the shape of a value does the engine walk the producers and apply
// the rule registered for each kind. Semantic errors, a non-boolean
// mask or mismatched data types, are raised here and never during
// construction.
package infer

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/gx-org/backend/shape"

	ptsync "github.com/parkerlamb/pytorch/base/sync"
	"github.com/parkerlamb/pytorch/ir"
	"github.com/parkerlamb/pytorch/trace"
)

// Func infers the output shapes of one node given the shapes of its
// operands, in operand order.
type Func func(ctx *Context, n *ir.Node, operands []*shape.Shape) ([]*shape.Shape, error)

var rules ptsync.Map[ir.Kind, Func]

// Register associates an inference rule with an operation kind.
// Registration is expected at package initialization: Register panics
// when the kind already has a rule.
func Register(kind ir.Kind, fn Func) {
	if _, loaded := rules.LoadOrStore(kind, fn); loaded {
		panic(fmt.Sprintf("infer: rule for %s already registered", kind.Name()))
	}
}

// Context carries the inference state handed to rules.
type Context struct {
	engine *Engine
}

// Trace being inferred. Rules use it to reach the annotations of
// opaque leaves.
func (ctx *Context) Trace() *trace.Trace {
	return ctx.engine.tr
}

// Engine memoizes shape inference over one trace. The memo-cache is
// synchronized: once the trace is complete, an engine may serve
// concurrent readers.
type Engine struct {
	tr    *trace.Trace
	cache ptsync.Map[ir.Value, *shape.Shape]
}

// New returns an engine inferring shapes over tr.
func New(tr *trace.Trace) *Engine {
	return &Engine{tr: tr}
}

// Shape returns the shape of a value, resolving the shapes of the
// producer chain on the way and caching every output encountered.
func (e *Engine) Shape(v ir.Value) (*shape.Shape, error) {
	if sh, ok := e.cache.Load(v); ok {
		return sh, nil
	}
	n := e.tr.Node(v.NodeID())
	if n == nil {
		return nil, errors.Errorf("value %s does not belong to the trace", v)
	}
	fn, ok := rules.Load(n.Kind())
	if !ok {
		return nil, errors.Errorf("no shape inference rule registered for %s", n.Kind().Name())
	}
	operands := n.Operands()
	shapes := make([]*shape.Shape, len(operands))
	for i, op := range operands {
		var err error
		if shapes[i], err = e.Shape(op); err != nil {
			return nil, err
		}
	}
	outs, err := fn(&Context{engine: e}, n, shapes)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot infer the shape of %s", n)
	}
	if len(outs) != n.Kind().Outputs() {
		return nil, errors.Errorf("inference rule for %s returned %d shape(s) but the operation has %d output(s)", n.Kind().Name(), len(outs), n.Kind().Outputs())
	}
	for i, out := range n.Outputs() {
		e.cache.Store(out, outs[i])
	}
	if v.Output() < 0 || v.Output() >= len(outs) {
		return nil, errors.Errorf("%s has no output %d", n.Kind().Name(), v.Output())
	}
	return outs[v.Output()], nil
}
