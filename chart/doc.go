/* Copyright 2026 Rabe42
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package chart provides the definition side of hierarchical state
// charts: the node tree, guarded transitions, variable declarations,
// and the validation that turns a raw definition into something a
// machine can execute.
//
// A chart is a tree of Nodes.  Each Node can declare variables, name
// a start node for its children, and carry out-transitions guarded by
// an event, a predicate, or both.  A chart definition carries no
// runtime state; see package machine for execution.
//
// Validate() checks a definition and builds an Index: the id table,
// parent links, and root paths that the machine package uses for
// scope resolution and for computing lowest common ancestors during
// transitions.
package chart
