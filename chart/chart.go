package chart

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/jsccast/yaml"
)

// Node is a state in a state chart.  A Node with children is a state
// chart of its own: its StartNode says where execution continues when
// the Node is entered, and its Attributes are variables scoped to the
// Node and everything below it.
//
// A Node's Id is a full path under the scn:/// scheme.  A child's id
// extends its parent's id by one segment, so the id alone places the
// Node in the hierarchy.
type Node struct {
	Id string `json:"id" yaml:"id"`

	// Description is documentation for humans.  Nothing here reads
	// it.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// OnEntry and OnExit name actions invoked when the Node is
	// entered or left.  These calls go to the capabilities
	// registry; the chart itself has no behavior.
	OnEntry *ActionCall `json:"on-entry,omitempty" yaml:"on-entry,omitempty"`
	OnExit  *ActionCall `json:"on-exit,omitempty" yaml:"on-exit,omitempty"`

	// StartNode is the id of the child where execution continues
	// when this Node is the target of a transition (or is the
	// chart root).  Required exactly when the Node has children.
	StartNode string `json:"start-node,omitempty" yaml:"start-node,omitempty"`

	// Transitions is the ordered list of ways out of this Node.
	// Order matters: when several guards are satisfied at once,
	// the first declared wins.
	Transitions []*Transition `json:"out-transitions,omitempty" yaml:"out-transitions,omitempty"`

	// Attributes declares the variables scoped to this Node.
	Attributes []*VariableDeclaration `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	Nodes []*Node `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// Copy makes a deep copy of the Node and everything below it.
//
// A machine holds a copy of its chart, so charts stored in a
// warehouse can be replaced without disturbing machines that are
// already running.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Id:          n.Id,
		Description: n.Description,
		OnEntry:     n.OnEntry.Copy(),
		OnExit:      n.OnExit.Copy(),
		StartNode:   n.StartNode,
	}
	if n.Transitions != nil {
		c.Transitions = make([]*Transition, len(n.Transitions))
		for i, t := range n.Transitions {
			c.Transitions[i] = t.Copy()
		}
	}
	if n.Attributes != nil {
		c.Attributes = make([]*VariableDeclaration, len(n.Attributes))
		for i, a := range n.Attributes {
			c.Attributes[i] = a.Copy()
		}
	}
	if n.Nodes != nil {
		c.Nodes = make([]*Node, len(n.Nodes))
		for i, k := range n.Nodes {
			c.Nodes[i] = k.Copy()
		}
	}
	return c
}

// Atomic reports whether the Node has no children.
func (n *Node) Atomic() bool {
	return len(n.Nodes) == 0
}

// Declaration finds a variable declared on this Node (not on an
// ancestor).
func (n *Node) Declaration(name string) *VariableDeclaration {
	for _, d := range n.Attributes {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// VariableDeclaration declares a variable on a Node together with its
// type and initial value.  The variable is visible to the declaring
// Node and its descendants, and its binding lives exactly as long as
// the declaring Node is active.
type VariableDeclaration struct {
	Name  string    `json:"name" yaml:"name"`
	Type  ValueType `json:"type" yaml:"type"`
	Value Value     `json:"value" yaml:"value"`
}

// Copy makes a copy of the declaration.
func (d *VariableDeclaration) Copy() *VariableDeclaration {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Transition is a guarded edge from its owning Node to the Node named
// by To.
type Transition struct {
	Guard *Guard `json:"guard" yaml:"guard"`

	// To is the id of the target Node, which can be anywhere in
	// the chart.
	To string `json:"to" yaml:"to"`

	// Action, if given, is invoked between leaving the source and
	// entering the target.
	Action *ActionCall `json:"action,omitempty" yaml:"action,omitempty"`
}

// Copy makes a deep copy of the Transition.
func (t *Transition) Copy() *Transition {
	if t == nil {
		return nil
	}
	return &Transition{
		Guard:  t.Guard.Copy(),
		To:     t.To,
		Action: t.Action.Copy(),
	}
}

// Guard says when a Transition may fire: on an event, when a
// predicate holds, or both.  At least one of Event and Predicate must
// be given.
//
// A Guard with only a Predicate is considered whenever the machine's
// variables change, so a chart can move on from a state without any
// event arriving.
type Guard struct {
	Event     string         `json:"event,omitempty" yaml:"event,omitempty"`
	Predicate *PredicateCall `json:"predicate,omitempty" yaml:"predicate,omitempty"`
}

// Copy makes a deep copy of the Guard.
func (g *Guard) Copy() *Guard {
	if g == nil {
		return nil
	}
	return &Guard{
		Event:     g.Event,
		Predicate: g.Predicate.Copy(),
	}
}

// ActionCall names an action in the capabilities registry along with
// literal parameters.  Action parameters carry no variable
// references.
type ActionCall struct {
	Name       string       `json:"name" yaml:"name"`
	Parameters []*Parameter `json:"parameters" yaml:"parameters"`
}

// Copy makes a deep copy of the ActionCall.
func (a *ActionCall) Copy() *ActionCall {
	if a == nil {
		return nil
	}
	c := &ActionCall{Name: a.Name}
	if a.Parameters != nil {
		c.Parameters = make([]*Parameter, len(a.Parameters))
		for i, p := range a.Parameters {
			c.Parameters[i] = p.Copy()
		}
	}
	return c
}

// PredicateCall names a predicate in the capabilities registry.
// Unlike action parameters, predicate parameters may refer to
// variables, which are resolved against the scopes visible at the
// Node that owns the guard.
type PredicateCall struct {
	Name       string       `json:"name" yaml:"name"`
	Parameters []*Parameter `json:"parameters" yaml:"parameters"`
}

// Copy makes a deep copy of the PredicateCall.
func (p *PredicateCall) Copy() *PredicateCall {
	if p == nil {
		return nil
	}
	c := &PredicateCall{Name: p.Name}
	if p.Parameters != nil {
		c.Parameters = make([]*Parameter, len(p.Parameters))
		for i, q := range p.Parameters {
			c.Parameters[i] = q.Copy()
		}
	}
	return c
}

// Parameter is one argument to an action or predicate call.
//
// A Parameter with a concrete Value is a literal.  A Parameter whose
// Value is none is a variable reference: Name is the variable to look
// up.  Only predicate calls may use references.
type Parameter struct {
	Name  string `json:"name" yaml:"name"`
	Value Value  `json:"value,omitempty" yaml:"value,omitempty"`
}

// Copy makes a copy of the Parameter.
func (p *Parameter) Copy() *Parameter {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Ref reports whether the Parameter is a variable reference rather
// than a literal.
func (p *Parameter) Ref() bool {
	return p.Value.IsNone()
}

// Read parses a chart definition from JSON or YAML.  The guess is
// cheap: JSON when the first byte looks like it, YAML otherwise.
func Read(bs []byte) (*Node, error) {
	var n Node
	trimmed := bytes.TrimSpace(bs)
	if 0 < len(trimmed) && (trimmed[0] == '{' || trimmed[0] == '[') {
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, err
		}
		return &n, nil
	}
	if err := yaml.Unmarshal(bs, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ReadFile reads and parses a chart definition file.
func ReadFile(filename string) (*Node, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Read(bs)
}
