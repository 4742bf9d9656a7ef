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

// Package lower translates a trace into backend artifacts.
//
// Each operation kind registers a lowering hook: a pure function from
// a node and the artifacts of its operands to the artifacts of its
// outputs. Hooks run only when a graph is compiled, never while it is
// being built, and reach backend capabilities by asserting the target
// against the capability interface declared next to the operation
// (e.g. ops.ScatterTarget).
package lower

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/gx-org/backend/platform"
	"github.com/gx-org/backend/shape"
	"go.uber.org/multierr"

	ptsync "github.com/parkerlamb/pytorch/base/sync"
	"github.com/parkerlamb/pytorch/infer"
	"github.com/parkerlamb/pytorch/ir"
	"github.com/parkerlamb/pytorch/trace"
)

// Node is the backend artifact produced for one output of an IR node.
type Node interface {
	// Shape of the artifact as computed by the backend.
	Shape() *shape.Shape
}

// Target is a backend accepting lowered operations. Concrete targets
// additionally implement the per-operation capability interfaces.
type Target interface {
	// Platform the artifacts are built for.
	Platform() platform.Platform
}

// Func lowers one node given the artifacts of its operands.
type Func func(ctx *Context, n *ir.Node, operands []Node) ([]Node, error)

var hooks ptsync.Map[ir.Kind, Func]

// Register associates a lowering hook with an operation kind.
// Registration is expected at package initialization: Register panics
// when the kind already has a hook.
func Register(kind ir.Kind, fn Func) {
	if _, loaded := hooks.LoadOrStore(kind, fn); loaded {
		panic(fmt.Sprintf("lower: hook for %s already registered", kind.Name()))
	}
}

// Context carries the lowering state handed to hooks.
type Context struct {
	target Target
	tr     *trace.Trace
	shapes *infer.Engine
}

// Target the graph is lowered to.
func (ctx *Context) Target() Target {
	return ctx.target
}

// Trace being lowered. Hooks use it to reach the annotations of
// opaque leaves.
func (ctx *Context) Trace() *trace.Trace {
	return ctx.tr
}

// Shapes returns the inference engine of the trace being lowered.
func (ctx *Context) Shapes() *infer.Engine {
	return ctx.shapes
}

// Validate checks that every operation kind reachable from roots has a
// lowering hook. All missing kinds are reported together.
func Validate(tr *trace.Trace, roots ...ir.Value) error {
	var err error
	seen := make(map[ir.Kind]bool)
	for _, n := range tr.PostOrder(roots...) {
		kind := n.Kind()
		if seen[kind] {
			continue
		}
		seen[kind] = true
		if _, ok := hooks.Load(kind); !ok {
			err = multierr.Append(err, errors.Errorf("no lowering hook registered for %s", kind.Name()))
		}
	}
	return err
}

// Lower translates the nodes reachable from roots and returns the
// artifact of each root value. Every node is lowered exactly once:
// subexpressions shared in the graph produce one artifact shared by
// all their consumers.
func Lower(tgt Target, tr *trace.Trace, roots ...ir.Value) ([]Node, error) {
	if err := Validate(tr, roots...); err != nil {
		return nil, err
	}
	ctx := &Context{target: tgt, tr: tr, shapes: infer.New(tr)}
	artifacts := make(map[ir.NodeID][]Node)
	for _, n := range tr.PostOrder(roots...) {
		operands := n.Operands()
		args := make([]Node, len(operands))
		for i, op := range operands {
			args[i] = artifacts[op.NodeID()][op.Output()]
		}
		fn, _ := hooks.Load(n.Kind())
		outs, err := fn(ctx, n, args)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot lower %s", n)
		}
		if len(outs) != n.Kind().Outputs() {
			return nil, errors.Errorf("lowering hook for %s returned %d artifact(s) but the operation has %d output(s)", n.Kind().Name(), len(outs), n.Kind().Outputs())
		}
		artifacts[n.ID()] = outs
	}
	rootArtifacts := make([]Node, len(roots))
	for i, root := range roots {
		arts, ok := artifacts[root.NodeID()]
		if !ok || root.Output() >= len(arts) {
			return nil, errors.Errorf("value %s does not belong to the trace", root)
		}
		rootArtifacts[i] = arts[root.Output()]
	}
	return rootArtifacts, nil
}
