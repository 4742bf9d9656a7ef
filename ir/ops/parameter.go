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
	"github.com/gx-org/backend/shape"

	"github.com/parkerlamb/pytorch/infer"
	"github.com/parkerlamb/pytorch/ir"
	"github.com/parkerlamb/pytorch/lower"
	"github.com/parkerlamb/pytorch/trace"
)

// ParameterKind identifies the inputs of a graph. Parameters are
// opaque: two parameters are distinct nodes even when their names and
// shapes are equal, so independent inputs never collapse under
// structural sharing.
var ParameterKind = ir.Register(ir.OpDef{Name: "parameter", Arity: 0, Opaque: true})

// ParamTarget is implemented by backends materialising graph inputs.
type ParamTarget interface {
	Parameter(name string, sh *shape.Shape) (lower.Node, error)
}

type paramInfo struct {
	name string
	sh   *shape.Shape
}

// Parameter records a named graph input of the given shape and binds
// its name in the trace. The name and shape live in a trace
// annotation, not on the node: the node itself is payload-free.
func Parameter(tr *trace.Trace, name string, sh *shape.Shape) (ir.Value, error) {
	if _, ok := tr.Param(name); ok {
		return ir.Value{}, errors.Errorf("parameter %s already bound in the trace", name)
	}
	n, err := tr.NewNode(ParameterKind, nil)
	if err != nil {
		return ir.Value{}, err
	}
	v := n.Output(0)
	if err := tr.BindParam(name, v); err != nil {
		return ir.Value{}, err
	}
	tr.Annotate(n.ID(), &paramInfo{name: name, sh: sh})
	return v, nil
}

func paramOf(tr *trace.Trace, n *ir.Node) (*paramInfo, error) {
	payload, ok := tr.Annotation(n.ID())
	if !ok {
		return nil, errors.Errorf("%s has no parameter annotation", n)
	}
	info, ok := payload.(*paramInfo)
	if !ok {
		return nil, errors.Errorf("%s: annotation of type %T is not a parameter", n, payload)
	}
	return info, nil
}

func init() {
	infer.Register(ParameterKind, func(ctx *infer.Context, n *ir.Node, _ []*shape.Shape) ([]*shape.Shape, error) {
		info, err := paramOf(ctx.Trace(), n)
		if err != nil {
			return nil, err
		}
		return []*shape.Shape{info.sh}, nil
	})
	lower.Register(ParameterKind, func(ctx *lower.Context, n *ir.Node, _ []lower.Node) ([]lower.Node, error) {
		info, err := paramOf(ctx.Trace(), n)
		if err != nil {
			return nil, err
		}
		tgt, ok := ctx.Target().(ParamTarget)
		if !ok {
			return nil, errors.Errorf("cannot lower parameter %s: backend %T does not implement ParamTarget", info.name, ctx.Target())
		}
		out, err := tgt.Parameter(info.name, info.sh)
		if err != nil {
			return nil, err
		}
		return []lower.Node{out}, nil
	})
}
