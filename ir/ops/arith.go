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
	"slices"

	"github.com/pkg/errors"
	"github.com/gx-org/backend/shape"

	"github.com/parkerlamb/pytorch/infer"
	"github.com/parkerlamb/pytorch/ir"
	"github.com/parkerlamb/pytorch/lower"
)

// AddKind and MulKind identify the element-wise binary operations.
var (
	AddKind = ir.Register(ir.OpDef{Name: "add", Arity: 2})
	MulKind = ir.Register(ir.OpDef{Name: "mul", Arity: 2})
)

// ArithTarget is implemented by backends supporting element-wise
// arithmetic.
type ArithTarget interface {
	Add(x, y lower.Node) (lower.Node, error)
	Mul(x, y lower.Node) (lower.Node, error)
}

// Add returns the value of the element-wise sum of x and y.
func Add(b ir.Builder, x, y ir.Value) (ir.Value, error) {
	return binary(b, AddKind, x, y)
}

// Mul returns the value of the element-wise product of x and y.
func Mul(b ir.Builder, x, y ir.Value) (ir.Value, error) {
	return binary(b, MulKind, x, y)
}

func binary(b ir.Builder, kind ir.Kind, x, y ir.Value) (ir.Value, error) {
	n, err := b.NewNode(kind, []ir.Value{x, y})
	if err != nil {
		return ir.Value{}, err
	}
	return n.Output(0), nil
}

// elementwiseShape requires both operands to share shape and data type
// and returns that shape.
func elementwiseShape(_ *infer.Context, n *ir.Node, operands []*shape.Shape) ([]*shape.Shape, error) {
	x, y := operands[0], operands[1]
	if x.DType != y.DType {
		return nil, errors.Errorf("mismatched data types %s and %s", x.DType, y.DType)
	}
	if !slices.Equal(x.AxisLengths, y.AxisLengths) {
		return nil, errors.Errorf("mismatched axis lengths %v and %v", x.AxisLengths, y.AxisLengths)
	}
	return []*shape.Shape{x}, nil
}

func lowerBinary(name string, apply func(ArithTarget, lower.Node, lower.Node) (lower.Node, error)) lower.Func {
	return func(ctx *lower.Context, _ *ir.Node, args []lower.Node) ([]lower.Node, error) {
		tgt, ok := ctx.Target().(ArithTarget)
		if !ok {
			return nil, errors.Errorf("cannot lower %s: backend %T does not implement ArithTarget", name, ctx.Target())
		}
		out, err := apply(tgt, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return []lower.Node{out}, nil
	}
}

func init() {
	infer.Register(AddKind, elementwiseShape)
	infer.Register(MulKind, elementwiseShape)
	lower.Register(AddKind, lowerBinary("add", ArithTarget.Add))
	lower.Register(MulKind, lowerBinary("mul", ArithTarget.Mul))
}
