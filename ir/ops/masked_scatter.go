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
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"go.uber.org/multierr"

	"github.com/parkerlamb/pytorch/infer"
	"github.com/parkerlamb/pytorch/ir"
	"github.com/parkerlamb/pytorch/lower"
)

// MaskedScatterKind identifies the masked scatter operation: write the
// values of source into input at the positions where mask is true.
//
// The operation carries no metadata: its kind and its operand triple
// describe it completely. Any special handling it needs from upper
// layers keys off the kind in the inference and lowering registries.
var MaskedScatterKind = ir.Register(ir.OpDef{Name: "masked_scatter", Arity: 3})

// ScatterTarget is implemented by backends supporting masked scatter.
type ScatterTarget interface {
	MaskedScatter(input, mask, source lower.Node) (lower.Node, error)
}

// MaskedScatter returns the value of input with the elements of source
// written at the positions selected by mask. The operand order
// [input, mask, source] is significant: each position carries a
// distinct role and the operands are never interchangeable.
func MaskedScatter(b ir.Builder, input, mask, source ir.Value) (ir.Value, error) {
	n, err := b.NewNode(MaskedScatterKind, []ir.Value{input, mask, source})
	if err != nil {
		return ir.Value{}, err
	}
	return n.Output(0), nil
}

// maskedScatterShape checks the mask and source data types against the
// input and returns the input shape. All operand violations are
// reported together.
func maskedScatterShape(_ *infer.Context, _ *ir.Node, operands []*shape.Shape) ([]*shape.Shape, error) {
	input, mask, source := operands[0], operands[1], operands[2]
	var err error
	if mask.DType != dtype.Bool {
		err = multierr.Append(err, errors.Errorf("mask has %s data type, want %s", mask.DType, dtype.Bool))
	}
	if source.DType != input.DType {
		err = multierr.Append(err, errors.Errorf("source has %s data type but input has %s", source.DType, input.DType))
	}
	if err != nil {
		return nil, err
	}
	return []*shape.Shape{input}, nil
}

func lowerMaskedScatter(ctx *lower.Context, _ *ir.Node, args []lower.Node) ([]lower.Node, error) {
	tgt, ok := ctx.Target().(ScatterTarget)
	if !ok {
		return nil, errors.Errorf("cannot lower masked scatter: backend %T does not implement ScatterTarget", ctx.Target())
	}
	out, err := tgt.MaskedScatter(args[0], args[1], args[2])
	if err != nil {
		return nil, err
	}
	return []lower.Node{out}, nil
}

func init() {
	infer.Register(MaskedScatterKind, maskedScatterShape)
	lower.Register(MaskedScatterKind, lowerMaskedScatter)
}
