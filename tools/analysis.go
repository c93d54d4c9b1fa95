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

package tools

import (
	"sort"

	"github.com/rabe42/state-machines/chart"
)

// ChartAnalysis summarizes the shape of a chart: what's in it, what's
// never reached, and where a machine could get stuck.
type ChartAnalysis struct {
	def *chart.Node

	NodeCount   int `json:"nodeCount" yaml:"nodeCount"`
	Transitions int `json:"transitions" yaml:"transitions"`
	Actions     int `json:"actions" yaml:"actions"`
	Predicates  int `json:"predicates" yaml:"predicates"`

	// DeadEnds are atomic nodes with no way out: neither the node
	// nor any ancestor has a transition.
	DeadEnds []string `json:"deadEnds,omitempty" yaml:"deadEnds,omitempty"`

	// Orphans are nodes no transition targets and no parent starts.
	Orphans []string `json:"orphans,omitempty" yaml:"orphans,omitempty"`

	// MissingTargets are transition targets that name no node in
	// the chart.  Validation would reject these; analysis just
	// reports them.
	MissingTargets []string `json:"missingTargets,omitempty" yaml:"missingTargets,omitempty"`

	Events       []string `json:"events,omitempty" yaml:"events,omitempty"`
	Variables    []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// Analyze studies a chart without validating it first, so it can
// describe definitions that Validate would reject.
func Analyze(def *chart.Node) (*ChartAnalysis, error) {
	a := ChartAnalysis{
		def: def,
	}

	nodes := make(map[string]*chart.Node)
	targeted := make(map[string]bool)
	missing := make(map[string]bool)
	events := make(map[string]bool)
	variables := make(map[string]bool)
	capabilities := make(map[string]bool)

	var walk func(n *chart.Node, escape bool)
	walk = func(n *chart.Node, escape bool) {
		nodes[n.Id] = n
		a.NodeCount++

		if n.OnEntry != nil {
			a.Actions++
			capabilities[n.OnEntry.Name] = true
		}
		if n.OnExit != nil {
			a.Actions++
			capabilities[n.OnExit.Name] = true
		}
		for _, d := range n.Attributes {
			variables[d.Name] = true
		}
		for _, t := range n.Transitions {
			a.Transitions++
			targeted[t.To] = true
			if t.Guard != nil {
				if t.Guard.Event != "" {
					events[t.Guard.Event] = true
				}
				if t.Guard.Predicate != nil {
					a.Predicates++
					capabilities[t.Guard.Predicate.Name] = true
				}
			}
			if t.Action != nil {
				capabilities[t.Action.Name] = true
			}
		}

		// A node with its own transitions lets every descendant
		// out.
		escape = escape || 0 < len(n.Transitions)

		if n.Atomic() && !escape {
			a.DeadEnds = append(a.DeadEnds, n.Id)
		}

		for _, kid := range n.Nodes {
			walk(kid, escape)
		}
	}
	walk(def, false)

	for to := range targeted {
		if _, have := nodes[to]; !have {
			missing[to] = true
		}
	}

	for id, n := range nodes {
		if id == def.Id {
			continue
		}
		if targeted[id] {
			continue
		}
		if parent, have := nodes[chart.ParentId(id)]; have && parent.StartNode == id {
			continue
		}
		a.Orphans = append(a.Orphans, n.Id)
	}

	sort.Strings(a.DeadEnds)
	sort.Strings(a.Orphans)
	a.MissingTargets = keysToStringSlice(missing)
	a.Events = keysToStringSlice(events)
	a.Variables = keysToStringSlice(variables)
	a.Capabilities = keysToStringSlice(capabilities)

	return &a, nil
}

// keysToStringSlice converts a map's keys into a sorted slice.
func keysToStringSlice(m map[string]bool) []string {
	var list []string
	for key := range m {
		list = append(list, key)
	}
	sort.Strings(list)
	return list
}
