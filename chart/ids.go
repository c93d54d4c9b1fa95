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

package chart

import (
	"regexp"
	"strings"
)

// Node ids live under the scn:/// scheme: scn:///Task/Running/Hot.
// The part after the scheme is the node's path in its chart, so ids
// double as ancestry: scn:///Task is an ancestor of scn:///Task/Running.
//
// Event ids are opaque strings here; by convention they use the
// sme:/// scheme.

// IdPrefix starts every node id.
const IdPrefix = "scn:///"

var nodeIdRegexp = regexp.MustCompile(`^scn:///\p{L}[\w.\-]*(/\w[\w.\-]*)*$`)

// ValidNodeId reports whether id is a well-formed node id.
func ValidNodeId(id string) bool {
	return nodeIdRegexp.MatchString(id)
}

// NodePath extracts the hierarchical path from a node id.
func NodePath(id string) (string, error) {
	if !ValidNodeId(id) {
		return "", &InvalidNodeId{Id: id}
	}
	return id[len(IdPrefix):], nil
}

// NodeId builds a node id from a path like "Task/Running".
func NodeId(path string) string {
	return IdPrefix + path
}

// ParentId gives the id of a node's parent, or "" for a chart root.
func ParentId(id string) string {
	if !strings.HasPrefix(id, IdPrefix) {
		return ""
	}
	i := strings.LastIndex(id, "/")
	if i < len(IdPrefix) {
		return ""
	}
	return id[:i]
}

// ChildId extends a node id by one path segment.
func ChildId(id, segment string) string {
	return id + "/" + segment
}

// Basename gives the last path segment of an id.  Diagrams and logs
// use it as a short label.
func Basename(id string) string {
	if i := strings.LastIndex(id, "/"); 0 <= i {
		return id[i+1:]
	}
	return id
}
