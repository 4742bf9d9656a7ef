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

package lower_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/platform"
	"github.com/gx-org/backend/shape"

	"github.com/parkerlamb/pytorch/ir"
	"github.com/parkerlamb/pytorch/ir/ops"
	"github.com/parkerlamb/pytorch/lower"
	"github.com/parkerlamb/pytorch/trace"
)

func sh(dt dtype.DataType, axes ...int) *shape.Shape {
	return &shape.Shape{DType: dt, AxisLengths: axes}
}

type artifact struct {
	sh *shape.Shape
}

func (a *artifact) Shape() *shape.Shape { return a.sh }

// fakeTarget counts the instructions it receives.
type fakeTarget struct {
	params, adds, muls, scatters, consts int
}

func (f *fakeTarget) Platform() platform.Platform { return nil }

func (f *fakeTarget) Parameter(name string, s *shape.Shape) (lower.Node, error) {
	f.params++
	return &artifact{sh: s}, nil
}

func (f *fakeTarget) Constant(value ops.HostValue) (lower.Node, error) {
	f.consts++
	return &artifact{sh: value.Shape()}, nil
}

func (f *fakeTarget) Add(x, y lower.Node) (lower.Node, error) {
	f.adds++
	return &artifact{sh: x.Shape()}, nil
}

func (f *fakeTarget) Mul(x, y lower.Node) (lower.Node, error) {
	f.muls++
	return &artifact{sh: x.Shape()}, nil
}

func (f *fakeTarget) MaskedScatter(input, mask, source lower.Node) (lower.Node, error) {
	f.scatters++
	return &artifact{sh: input.Shape()}, nil
}

func param(t *testing.T, tr *trace.Trace, name string, s *shape.Shape) ir.Value {
	t.Helper()
	v, err := ops.Parameter(tr, name, s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestLower(t *testing.T) {
	tr := trace.New()
	want := sh(dtype.Float32, 2, 3)
	input := param(t, tr, "input", want)
	mask := param(t, tr, "mask", sh(dtype.Bool, 2, 3))
	source := param(t, tr, "source", want)
	doubled, err := ops.Add(tr, source, source)
	if err != nil {
		t.Fatal(err)
	}
	root, err := ops.MaskedScatter(tr, input, mask, doubled)
	if err != nil {
		t.Fatal(err)
	}
	tgt := &fakeTarget{}
	arts, err := lower.Lower(tgt, tr, root)
	if err != nil {
		t.Fatalf("cannot lower the trace: %v", err)
	}
	if len(arts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(arts))
	}
	if diff := cmp.Diff(arts[0].Shape(), want); diff != "" {
		t.Errorf("unexpected root shape:\n%s", diff)
	}
	if tgt.params != 3 || tgt.adds != 1 || tgt.scatters != 1 {
		t.Errorf("got %d parameter(s), %d add(s), %d scatter(s); want 3, 1, 1", tgt.params, tgt.adds, tgt.scatters)
	}
}

func TestSharedSubexpressionLoweredOnce(t *testing.T) {
	tr := trace.New()
	a := param(t, tr, "a", sh(dtype.Float32, 4))
	b := param(t, tr, "b", sh(dtype.Float32, 4))
	sum1, err := ops.Add(tr, a, b)
	if err != nil {
		t.Fatal(err)
	}
	sum2, err := ops.Add(tr, a, b)
	if err != nil {
		t.Fatal(err)
	}
	root, err := ops.Mul(tr, sum1, sum2)
	if err != nil {
		t.Fatal(err)
	}
	tgt := &fakeTarget{}
	if _, err := lower.Lower(tgt, tr, root); err != nil {
		t.Fatalf("cannot lower the trace: %v", err)
	}
	if tgt.adds != 1 {
		t.Errorf("shared sum lowered %d times, want 1", tgt.adds)
	}
	if tgt.muls != 1 {
		t.Errorf("got %d mul(s), want 1", tgt.muls)
	}
}

func TestConstantLowering(t *testing.T) {
	tr := trace.New()
	value := &hostValue{sh: sh(dtype.Float32, 4)}
	c, err := ops.Constant(tr, value)
	if err != nil {
		t.Fatal(err)
	}
	a := param(t, tr, "a", sh(dtype.Float32, 4))
	root, err := ops.Add(tr, c, a)
	if err != nil {
		t.Fatal(err)
	}
	tgt := &fakeTarget{}
	if _, err := lower.Lower(tgt, tr, root); err != nil {
		t.Fatalf("cannot lower the trace: %v", err)
	}
	if tgt.consts != 1 {
		t.Errorf("got %d constant(s), want 1", tgt.consts)
	}
}

type hostValue struct {
	sh *shape.Shape
}

func (h *hostValue) Shape() *shape.Shape { return h.sh }
func (h *hostValue) Acquire() []byte     { return nil }
func (h *hostValue) Release()            {}

// paramOnlyTarget lowers parameters and nothing else.
type paramOnlyTarget struct{}

func (paramOnlyTarget) Platform() platform.Platform { return nil }

func (paramOnlyTarget) Parameter(name string, s *shape.Shape) (lower.Node, error) {
	return &artifact{sh: s}, nil
}

func TestMissingCapability(t *testing.T) {
	tr := trace.New()
	input := param(t, tr, "input", sh(dtype.Float32, 2))
	mask := param(t, tr, "mask", sh(dtype.Bool, 2))
	source := param(t, tr, "source", sh(dtype.Float32, 2))
	root, err := ops.MaskedScatter(tr, input, mask, source)
	if err != nil {
		t.Fatal(err)
	}
	_, err = lower.Lower(paramOnlyTarget{}, tr, root)
	if err == nil || !strings.Contains(err.Error(), "does not implement ScatterTarget") {
		t.Errorf("got error %v, want a missing capability error", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("second registration for %s did not panic", ops.AddKind.Name())
		}
	}()
	lower.Register(ops.AddKind, func(_ *lower.Context, _ *ir.Node, _ []lower.Node) ([]lower.Node, error) {
		return nil, nil
	})
}

var (
	hookLessKind1 = ir.Register(ir.OpDef{Name: "test_hook_less1", Arity: 0})
	hookLessKind2 = ir.Register(ir.OpDef{Name: "test_hook_less2", Arity: 1})
)

func TestValidate(t *testing.T) {
	tr := trace.New()
	leaf, err := tr.NewNode(hookLessKind1, nil)
	if err != nil {
		t.Fatal(err)
	}
	root, err := tr.NewNode(hookLessKind2, []ir.Value{leaf.Output(0)})
	if err != nil {
		t.Fatal(err)
	}
	err = lower.Validate(tr, root.Output(0))
	if err == nil {
		t.Fatalf("hook-less kinds validated without error")
	}
	for _, want := range []string{"test_hook_less1", "test_hook_less2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLowerForeignRoot(t *testing.T) {
	tr := trace.New()
	if _, err := lower.Lower(&fakeTarget{}, tr, ir.MakeValue(42, 0)); err == nil {
		t.Errorf("foreign root lowered without error")
	}
}

func TestLowerRootOutputOutOfRange(t *testing.T) {
	tr := trace.New()
	a := param(t, tr, "a", sh(dtype.Float32, 2))
	root := ir.MakeValue(a.NodeID(), 5)
	_, err := lower.Lower(&fakeTarget{}, tr, root)
	if err == nil || !strings.Contains(err.Error(), "does not belong to the trace") {
		t.Errorf("got error %v, want a foreign value error", err)
	}
}
