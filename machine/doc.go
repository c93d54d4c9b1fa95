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

// Package machine executes state charts.
//
// A Machine is one running instance of a validated chart (see package
// chart).  Its state is the id of the active leaf node plus the
// variable bindings of the nodes on the path from the root down to
// that leaf.  Ancestors of the active leaf are implicitly active:
// their variables are in scope and their transitions are considered.
//
// Three things drive a machine: Start(), SendEvent(), and
// SetVariable().  Each returns a Report saying which transitions
// fired and which event ids could fire something now.  After an event
// or a variable change, the machine keeps firing transitions whose
// guards are pure conditions until none is enabled; Control.Limit
// bounds that loop so a cyclic chart cannot spin forever.
//
// When several guards are satisfied at once, the transition declared
// deepest wins, and within one node the first declared wins.  A
// transition exits the nodes from the old leaf up to (excluding) the
// lowest common ancestor of source and target, runs its action, and
// enters nodes down to the target's effective leaf.  Exited nodes
// drop their variable bindings; entered nodes get fresh ones at the
// declared initial values.  There is no rollback: when an action or
// predicate fails, the machine stays exactly where the failure left
// it.
//
// Actions and predicates themselves live behind the Capabilities
// interface; see package caps for the standard registry.
//
// A Machine is not safe for concurrent use.  Package fleet serializes
// access per machine.
package machine
