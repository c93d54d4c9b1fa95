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
	"fmt"
	"io"
	"strings"

	"github.com/rabe42/state-machines/chart"
)

type MermaidOpts struct {
	// ShowEvents puts the guard event on each transition edge.
	ShowEvents bool `json:"showEvents"`

	// ShowPredicates adds the guard predicate call, when there is
	// one, to the edge label.
	ShowPredicates bool `json:"showPredicates,omitempty"`

	// ActionFill is the fill color for nodes with an entry or exit
	// action.
	ActionFill string `json:"actionFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given chart.  Composite nodes become subgraphs, so the
// drawing keeps the chart's hierarchy.
func Mermaid(def *chart.Node, w io.WriteCloser, opts *MermaidOpts) error {

	if opts == nil {
		opts = &MermaidOpts{
			ShowEvents:     true,
			ShowPredicates: true,
			ActionFill:     "#bcf2db",
		}
	}

	fmt.Fprintf(w, "graph TB\n")

	nids := make(map[string]string)
	num := 0

	// First pass declares every node, composites as subgraphs, so
	// edges can point anywhere in the chart.
	var declare func(n *chart.Node, indent string)
	declare = func(n *chart.Node, indent string) {
		num++
		nid := fmt.Sprintf("n%d", num)
		nids[n.Id] = nid

		label := chart.Basename(n.Id)

		if !n.Atomic() {
			fmt.Fprintf(w, "%ssubgraph %s[\"%s\"]\n", indent, nid, label)
			for _, kid := range n.Nodes {
				declare(kid, indent+"  ")
			}
			fmt.Fprintf(w, "%send\n", indent)
			return
		}

		if n.OnEntry == nil && n.OnExit == nil {
			fmt.Fprintf(w, "%s%s(\"%s\")\n", indent, nid, label)
		} else {
			fmt.Fprintf(w, "%s%s[\"%s\"]\n", indent, nid, label)
			if opts.ActionFill != "" {
				fmt.Fprintf(w, "%sstyle %s fill:%s\n", indent, nid, opts.ActionFill)
			}
		}
	}
	declare(def, "  ")

	var connect func(n *chart.Node) error
	connect = func(n *chart.Node) error {
		nid := nids[n.Id]

		if n.StartNode != "" {
			to, have := nids[n.StartNode]
			if !have {
				return fmt.Errorf("start node %q is not in the chart", n.StartNode)
			}
			fmt.Fprintf(w, "  %s -. start .-> %s\n", nid, to)
		}

		for _, t := range n.Transitions {
			to, have := nids[t.To]
			if !have {
				return fmt.Errorf("target %q is not in the chart", t.To)
			}

			label := ""
			if opts.ShowEvents && t.Guard != nil && t.Guard.Event != "" {
				label = chart.Basename(t.Guard.Event)
			}
			if opts.ShowPredicates && t.Guard != nil && t.Guard.Predicate != nil {
				call := CallString(t.Guard.Predicate.Name, t.Guard.Predicate.Parameters)
				call = strings.Replace(call, `"`, `'`, -1)
				if label == "" {
					label = call
				} else {
					label += " & " + call
				}
			}

			if label == "" {
				fmt.Fprintf(w, "  %s --> %s\n", nid, to)
			} else {
				fmt.Fprintf(w, "  %s -- \"%s\" --> %s\n", nid, label, to)
			}
		}

		for _, kid := range n.Nodes {
			if err := connect(kid); err != nil {
				return err
			}
		}

		return nil
	}
	if err := connect(def); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n")

	return w.Close()
}
