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

// Package ir defines the nodes of the lazy tensor graph.
//
// Tensor operations are not executed when they are called. Instead,
// each operation is recorded as an immutable node referencing the
// outputs of earlier nodes through Value handles. The graph is
// optimized and lowered to a backend later, outside this package.
//
// Construction is purely structural: a node is fully described by its
// operation kind and its ordered operand values. Shape and data type
// checking belongs to the inference and lowering collaborators and
// never runs while the graph is being built.
package ir

// Builder is the single point of node creation for one graph.
// A builder may return an already constructed, structurally equal node
// instead of allocating a new one (see trace.Trace).
type Builder interface {
	// NewNode returns a node of the given kind applied to the operands.
	NewNode(kind Kind, operands []Value) (*Node, error)
}
