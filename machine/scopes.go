package machine

import (
	"fmt"

	"github.com/rabe42/state-machines/chart"
)

// Scopes holds the variable bindings of the active nodes, one scope
// per node.  A scope exists exactly while its node is active; leaving
// a node throws its bindings away, and re-entering starts over from
// the declared initial values.
//
// Lookup is lexical: a name resolves by walking from the requesting
// node toward the root and taking the first scope that declares it.
// An inner declaration shadows an outer one of the same name.
type Scopes struct {
	ix   *chart.Index
	vars map[string]map[string]chart.Value
}

// NewScopes makes an empty Scopes for a chart.
func NewScopes(ix *chart.Index) *Scopes {
	return &Scopes{
		ix:   ix,
		vars: make(map[string]map[string]chart.Value, 4),
	}
}

// Declare opens the scope for a node, binding its declared variables
// to their initial values.
func (s *Scopes) Declare(nodeId string) {
	n, have := s.ix.Node(nodeId)
	if !have {
		return
	}
	m := make(map[string]chart.Value, len(n.Attributes))
	for _, d := range n.Attributes {
		m[d.Name] = d.Value
	}
	s.vars[nodeId] = m
}

// Clear drops a node's scope and everything in it.
func (s *Scopes) Clear(nodeId string) {
	delete(s.vars, nodeId)
}

// Resolve looks a name up from the given node toward the root.
func (s *Scopes) Resolve(nodeId, name string) (chart.Value, error) {
	for n, _ := s.ix.Node(nodeId); n != nil; n = s.ix.Parent(n.Id) {
		if m, have := s.vars[n.Id]; have {
			if v, have := m[name]; have {
				return v, nil
			}
		}
	}
	return chart.None, &UnknownVariable{Name: name, Node: nodeId}
}

// Set assigns a value to the variable that name resolves to from the
// given node.  The value must fit the variable's declared type.
func (s *Scopes) Set(nodeId, name string, v chart.Value) error {
	for n, _ := s.ix.Node(nodeId); n != nil; n = s.ix.Parent(n.Id) {
		m, have := s.vars[n.Id]
		if !have {
			continue
		}
		if _, have := m[name]; !have {
			continue
		}
		d := n.Declaration(name)
		if d == nil {
			// A scope only ever holds declared names.
			return fmt.Errorf("no declaration for bound variable %q at %s", name, n.Id)
		}
		w, err := v.Coerce(d.Type)
		if err != nil {
			if tm, is := err.(*chart.TypeMismatch); is {
				tm.Variable = name
			}
			return err
		}
		m[name] = w
		return nil
	}
	return &UnknownVariable{Name: name, Node: nodeId}
}

// Bindings snapshots all scopes, for persistence and for the curious.
func (s *Scopes) Bindings() map[string]map[string]chart.Value {
	out := make(map[string]map[string]chart.Value, len(s.vars))
	for nodeId, m := range s.vars {
		c := make(map[string]chart.Value, len(m))
		for name, v := range m {
			c[name] = v
		}
		out[nodeId] = c
	}
	return out
}

// restore replaces all scopes from a persisted snapshot, checking the
// bindings against the chart's declarations.
func (s *Scopes) restore(bindings map[string]map[string]chart.Value) error {
	vars := make(map[string]map[string]chart.Value, len(bindings))
	for nodeId, m := range bindings {
		n, have := s.ix.Node(nodeId)
		if !have {
			return fmt.Errorf("bindings for unknown node %q", nodeId)
		}
		c := make(map[string]chart.Value, len(m))
		for name, v := range m {
			d := n.Declaration(name)
			if d == nil {
				return fmt.Errorf("binding for undeclared variable %q at %s", name, nodeId)
			}
			w, err := v.Coerce(d.Type)
			if err != nil {
				return err
			}
			c[name] = w
		}
		vars[nodeId] = c
	}
	s.vars = vars
	return nil
}
