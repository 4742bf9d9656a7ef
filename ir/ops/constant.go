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

package ops

import (
	"github.com/pkg/errors"
	"github.com/gx-org/backend/platform"
	"github.com/gx-org/backend/shape"

	"github.com/parkerlamb/pytorch/infer"
	"github.com/parkerlamb/pytorch/ir"
	"github.com/parkerlamb/pytorch/lower"
	"github.com/parkerlamb/pytorch/trace"
)

// HostValue is the host payload of a constant node.
// platform.HostBuffer implementations satisfy it.
type HostValue interface {
	// Shape of the host data.
	Shape() *shape.Shape
	// Acquire locks the data and returns it.
	Acquire() []byte
	// Release the data after a call to Acquire.
	Release()
}

var _ HostValue = (platform.HostBuffer)(nil)

// ConstantKind identifies host constants embedded in the graph.
// Constants are opaque: their payload lives outside the structural
// hash, so two constants never collapse under structural sharing.
var ConstantKind = ir.Register(ir.OpDef{Name: "constant", Arity: 0, Opaque: true})

// ConstantTarget is implemented by backends accepting host constants.
type ConstantTarget interface {
	Constant(value HostValue) (lower.Node, error)
}

// Constant records a host value as a graph constant. The payload is
// kept as a trace annotation; the node itself is payload-free.
func Constant(tr *trace.Trace, value HostValue) (ir.Value, error) {
	n, err := tr.NewNode(ConstantKind, nil)
	if err != nil {
		return ir.Value{}, err
	}
	tr.Annotate(n.ID(), value)
	return n.Output(0), nil
}

// ConstantValue returns the host payload of a constant node.
func ConstantValue(tr *trace.Trace, n *ir.Node) (HostValue, error) {
	payload, ok := tr.Annotation(n.ID())
	if !ok {
		return nil, errors.Errorf("%s has no constant annotation", n)
	}
	value, ok := payload.(HostValue)
	if !ok {
		return nil, errors.Errorf("%s: annotation of type %T is not a host value", n, payload)
	}
	return value, nil
}

func init() {
	infer.Register(ConstantKind, func(ctx *infer.Context, n *ir.Node, _ []*shape.Shape) ([]*shape.Shape, error) {
		value, err := ConstantValue(ctx.Trace(), n)
		if err != nil {
			return nil, err
		}
		return []*shape.Shape{value.Shape()}, nil
	})
	lower.Register(ConstantKind, func(ctx *lower.Context, n *ir.Node, _ []lower.Node) ([]lower.Node, error) {
		value, err := ConstantValue(ctx.Trace(), n)
		if err != nil {
			return nil, err
		}
		tgt, ok := ctx.Target().(ConstantTarget)
		if !ok {
			return nil, errors.Errorf("cannot lower %s: backend %T does not implement ConstantTarget", n, ctx.Target())
		}
		out, err := tgt.Constant(value)
		if err != nil {
			return nil, err
		}
		return []lower.Node{out}, nil
	})
}
