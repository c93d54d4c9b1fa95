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

import "strconv"

// Index is a validated chart: the node tree plus the tables the
// machine package needs at run time.  Build one with Validate().
type Index struct {
	root    *Node
	nodes   map[string]*Node
	parents map[string]*Node
	paths   map[string][]*Node
}

// Root gives the chart's root node.
func (ix *Index) Root() *Node {
	return ix.root
}

// Id gives the chart id, which is the root node's id.
func (ix *Index) Id() string {
	return ix.root.Id
}

// Node looks up a node by id.
func (ix *Index) Node(id string) (*Node, bool) {
	n, have := ix.nodes[id]
	return n, have
}

// Parent gives a node's parent, or nil for the root.
func (ix *Index) Parent(id string) *Node {
	return ix.parents[id]
}

// Path gives the nodes from the root down to id, inclusive.  The
// slice is shared; don't modify it.
func (ix *Index) Path(id string) []*Node {
	return ix.paths[id]
}

// LCA gives the lowest common ancestor of two nodes.  The LCA of a
// node with itself is its parent, so a self-transition leaves and
// re-enters its node (and resets the node's variables on the way).
// The result is nil only when the walk runs off the root.
func (ix *Index) LCA(a, b string) *Node {
	if a == b {
		return ix.parents[a]
	}
	pa, pb := ix.paths[a], ix.paths[b]
	var last *Node
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			break
		}
		last = pa[i]
	}
	return last
}

// EffectiveLeaf follows start-node references down from n until it
// reaches an atomic node.  Validation guarantees each reference names
// a direct child, so the walk always descends.
func (ix *Index) EffectiveLeaf(n *Node) (*Node, error) {
	for !n.Atomic() {
		if n.StartNode == "" {
			return nil, &UnresolvableTarget{NodeId: n.Id, Reason: "composite node has no start-node"}
		}
		k, have := ix.nodes[n.StartNode]
		if !have {
			return nil, &UnresolvableTarget{NodeId: n.Id, Ref: n.StartNode, Reason: "no such node"}
		}
		if ix.parents[k.Id] != n {
			return nil, &UnresolvableTarget{NodeId: n.Id, Ref: n.StartNode, Reason: "not a direct child"}
		}
		n = k
	}
	return n, nil
}

// Validate checks a chart definition and builds its Index.
//
// A valid chart has well-formed, properly nested node ids, a
// start-node on every composite node (and on no atomic node),
// transitions whose targets exist, guards with an event or a
// predicate or both, literal-only action parameters, and variable
// declarations whose initial values fit their declared types.
//
// Validate normalizes initial values in place: an integer declared
// with the JSON value 1 holds the integer 1 afterwards, not the
// number 1.0.
func Validate(root *Node) (*Index, error) {
	if root == nil {
		return nil, &ValidationError{Reason: "no root node"}
	}
	if !ValidNodeId(root.Id) {
		return nil, &ValidationError{ChartId: root.Id, Reason: `root id "` + root.Id + `" is not a valid scn:/// id`}
	}

	ix := &Index{
		root:    root,
		nodes:   make(map[string]*Node, 16),
		parents: make(map[string]*Node, 16),
		paths:   make(map[string][]*Node, 16),
	}

	if err := ix.index(root, nil, nil); err != nil {
		return nil, err
	}
	if err := ix.checkTree(root); err != nil {
		return nil, err
	}

	return ix, nil
}

func (ix *Index) checkTree(n *Node) error {
	if err := ix.check(n); err != nil {
		return err
	}
	if !n.Atomic() {
		// With the per-node checks done, every composite must
		// resolve to a leaf.
		if _, err := ix.EffectiveLeaf(n); err != nil {
			return ix.invalid(n, err.Error())
		}
	}
	for _, k := range n.Nodes {
		if err := ix.checkTree(k); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) invalid(n *Node, reason string) *ValidationError {
	return &ValidationError{ChartId: ix.root.Id, NodeId: n.Id, Reason: reason}
}

// index registers the subtree rooted at n: id syntax, id nesting, and
// uniqueness.
func (ix *Index) index(n *Node, parent *Node, path []*Node) error {
	if !ValidNodeId(n.Id) {
		bad := ix.root
		if parent != nil {
			bad = parent
		}
		return ix.invalid(bad, `child id "`+n.Id+`" is not a valid scn:/// id`)
	}
	if parent != nil {
		if ParentId(n.Id) != parent.Id {
			return ix.invalid(parent, `child id "`+n.Id+`" does not extend "`+parent.Id+`" by one segment`)
		}
	}
	if _, have := ix.nodes[n.Id]; have {
		return ix.invalid(n, "duplicate node id")
	}

	path = append(path, n)
	own := make([]*Node, len(path))
	copy(own, path)

	ix.nodes[n.Id] = n
	ix.parents[n.Id] = parent
	ix.paths[n.Id] = own

	for _, k := range n.Nodes {
		if k == nil {
			return ix.invalid(n, "nil child node")
		}
		if err := ix.index(k, n, path); err != nil {
			return err
		}
	}
	return nil
}

// check runs the per-node semantic checks.
func (ix *Index) check(n *Node) error {
	if n.Atomic() {
		if n.StartNode != "" {
			return ix.invalid(n, "start-node on a node without children")
		}
	} else {
		if n.StartNode == "" {
			return ix.invalid(n, "composite node has no start-node")
		}
		k, have := ix.nodes[n.StartNode]
		if !have || ix.parents[k.Id] != n {
			return ix.invalid(n, `start-node "`+n.StartNode+`" is not a direct child`)
		}
	}

	seen := make(map[string]bool, len(n.Attributes))
	for _, d := range n.Attributes {
		if d == nil {
			return ix.invalid(n, "nil variable declaration")
		}
		if d.Name == "" {
			return ix.invalid(n, "variable declaration without a name")
		}
		if seen[d.Name] {
			return ix.invalid(n, `variable "`+d.Name+`" declared twice`)
		}
		seen[d.Name] = true
		if !d.Type.Concrete() {
			return ix.invalid(n, `variable "`+d.Name+`" has unknown type "`+string(d.Type)+`"`)
		}
		v, err := d.Value.Coerce(d.Type)
		if err != nil {
			return ix.invalid(n, `variable "`+d.Name+`": initial value `+err.Error())
		}
		d.Value = v
	}

	for i, t := range n.Transitions {
		if t == nil {
			return ix.invalid(n, "nil transition")
		}
		if _, have := ix.nodes[t.To]; !have {
			return ix.invalid(n, `transition target "`+t.To+`" does not exist`)
		}
		if t.Guard == nil || (t.Guard.Event == "" && t.Guard.Predicate == nil) {
			return ix.invalid(n, "transition "+strconv.Itoa(i)+" has no guard")
		}
		if t.Guard.Predicate != nil {
			if err := ix.checkCall(n, t.Guard.Predicate.Name, t.Guard.Predicate.Parameters, true); err != nil {
				return err
			}
		}
		if t.Action != nil {
			if err := ix.checkCall(n, t.Action.Name, t.Action.Parameters, false); err != nil {
				return err
			}
		}
	}

	if n.OnEntry != nil {
		if err := ix.checkCall(n, n.OnEntry.Name, n.OnEntry.Parameters, false); err != nil {
			return err
		}
	}
	if n.OnExit != nil {
		if err := ix.checkCall(n, n.OnExit.Name, n.OnExit.Parameters, false); err != nil {
			return err
		}
	}

	return nil
}

// checkCall checks an action or predicate call.  Only predicates may
// pass variable references.
func (ix *Index) checkCall(n *Node, name string, params []*Parameter, refsAllowed bool) error {
	if name == "" {
		return ix.invalid(n, "call without a name")
	}
	for _, p := range params {
		if p == nil {
			return ix.invalid(n, `call "`+name+`": nil parameter`)
		}
		if p.Name == "" {
			return ix.invalid(n, `call "`+name+`": parameter without a name`)
		}
		if p.Ref() && !refsAllowed {
			return ix.invalid(n, `call "`+name+`": parameter "`+p.Name+`" has no value (only predicates may reference variables)`)
		}
	}
	return nil
}
