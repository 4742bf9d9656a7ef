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
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/maps"
)

// OpDef describes an operation to register.
type OpDef struct {
	// Name of the operation, unique across the registry.
	Name string
	// Arity is the fixed number of operands the operation requires.
	Arity int
	// Outputs is the number of values the operation produces.
	// Zero means one output.
	Outputs int
	// Opaque marks operations whose identity is not fully captured by
	// their operands, such as parameters and constants carrying
	// out-of-band payloads. Opaque nodes are never merged by
	// structural sharing.
	Opaque bool
}

// Kind identifies a registered operation. Adding an operation to the
// system means registering a kind, then attaching its shape inference
// rule and lowering hook to that kind in the respective registries.
type Kind int

var registry = struct {
	mut   sync.RWMutex
	defs  []OpDef
	names map[string]Kind
}{names: make(map[string]Kind)}

// Register adds an operation to the registry and returns its kind.
// Registration is expected at package initialization: Register panics
// on an empty or duplicate name, a negative arity, or a negative
// output count.
func Register(def OpDef) Kind {
	if def.Name == "" {
		panic("ir: cannot register an operation with an empty name")
	}
	if def.Arity < 0 {
		panic(fmt.Sprintf("ir: cannot register %s with arity %d", def.Name, def.Arity))
	}
	if def.Outputs == 0 {
		def.Outputs = 1
	}
	if def.Outputs < 1 {
		panic(fmt.Sprintf("ir: cannot register %s with %d outputs", def.Name, def.Outputs))
	}
	registry.mut.Lock()
	defer registry.mut.Unlock()
	if _, ok := registry.names[def.Name]; ok {
		panic(fmt.Sprintf("ir: operation %s already registered", def.Name))
	}
	k := Kind(len(registry.defs))
	registry.defs = append(registry.defs, def)
	registry.names[def.Name] = k
	return k
}

func (k Kind) def() OpDef {
	registry.mut.RLock()
	defer registry.mut.RUnlock()
	if k < 0 || int(k) >= len(registry.defs) {
		panic(fmt.Sprintf("ir: kind %d is not registered", int(k)))
	}
	return registry.defs[k]
}

// Name of the operation.
func (k Kind) Name() string {
	return k.def().Name
}

// Arity returns the number of operands the operation requires.
func (k Kind) Arity() int {
	return k.def().Arity
}

// Outputs returns the number of values the operation produces.
func (k Kind) Outputs() int {
	return k.def().Outputs
}

// Opaque reports whether nodes of this kind are exempt from structural
// sharing.
func (k Kind) Opaque() bool {
	return k.def().Opaque
}

// String returns the name of the operation.
func (k Kind) String() string {
	return k.Name()
}

// KindByName returns the kind registered under a name.
func KindByName(name string) (Kind, bool) {
	registry.mut.RLock()
	defer registry.mut.RUnlock()
	k, ok := registry.names[name]
	return k, ok
}

// Kinds returns all registered kinds in registration order.
func Kinds() []Kind {
	registry.mut.RLock()
	defer registry.mut.RUnlock()
	ks := make([]Kind, len(registry.defs))
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}

// Names returns the sorted names of all registered operations.
func Names() []string {
	registry.mut.RLock()
	defer registry.mut.RUnlock()
	names := maps.Keys(registry.names)
	sort.Strings(names)
	return names
}
