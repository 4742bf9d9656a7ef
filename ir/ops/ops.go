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

// Package ops defines the operations of the lazy tensor IR.
//
// Each operation registers its kind with the ir registry, then
// attaches a shape inference rule and a lowering hook to that kind.
// Backends opt into an operation by implementing the capability
// interface declared next to it; lowering hooks discover the
// capability by type assertion on the target.
package ops
