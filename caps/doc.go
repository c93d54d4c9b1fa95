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

// Package caps implements the host side of chart capabilities: a
// registry of named actions and predicates that machines call during
// transitions.
//
// A chart never contains behavior.  When a machine fires an on-entry
// action or checks a guard predicate, it calls out by name, and the
// Registry is where those names resolve to Go functions.  The machine
// resolves variable references before the call, so capability
// functions only ever see concrete values.
//
// Prelude() returns a Registry preloaded with the comparison
// predicates (eq, ne, lt, le, gt, ge) and a few basic actions (log,
// sleep, http) that the shipped example charts use.  Hosts register
// their own capabilities on top, either directly or via the goja
// subpackage for capabilities written in ECMAScript.
package caps
