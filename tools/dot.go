package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rabe42/state-machines/chart"
)

// Dot makes a Graphviz dot file for the given chart.  Composite nodes
// become clusters, with the composite itself drawn as a small port
// node inside so edges have something to land on.  Still an ugly dot
// file.
//
// The optional fromNode and toNode can be ids of nodes during a
// transition.  If non-zero, then the edge between them will be red,
// and the toNode will be red too.
func Dot(def *chart.Node, w io.WriteCloser, fromNode, toNode string) error {

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [compound=true,ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	node := func(n *chart.Node, port bool) {
		label := chart.Basename(n.Id)
		if n.Description != "" {
			doc := n.Description
			if 40 < len(doc) {
				period := strings.Index(doc, ". ")
				if 0 < period {
					doc = doc[0 : period+1]
				}
			}
			label += "<BR/><FONT POINT-SIZE='8'>" + htmlEscape(doc) + "</FONT>"
		}

		fillcolor := "#99ddc8"
		if eventGuarded(n) {
			fillcolor = "#2d93ad"
		} else if 0 < len(n.Transitions) {
			fillcolor = "#52aa5e"
		}

		color := "black"
		shape := "record"
		style := "filled"
		if n.OnEntry != nil || n.OnExit != nil {
			shape = "note"
			var calls string
			if n.OnEntry != nil {
				calls += "entry: " + CallString(n.OnEntry.Name, n.OnEntry.Parameters) + "\n"
			}
			if n.OnExit != nil {
				calls += "exit: " + CallString(n.OnExit.Name, n.OnExit.Parameters) + "\n"
			}
			label += `<FONT POINT-SIZE="6">` +
				`<BR/>` + strings.Replace(htmlEscape(calls), "\n", `<BR ALIGN="LEFT"/>`, -1) +
				`</FONT>`
		}
		if toNode == n.Id {
			color = "red"
			fillcolor = "#f98b8b"
		}
		if port {
			style += ",bold"
		}
		if n.Atomic() && len(n.Transitions) == 0 {
			style += ",dashed"
		}
		fmt.Fprintf(w, "  \"%s\" [shape=\"%s\", style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			n.Id, shape, style, color, fillcolor, label)
	}

	var declare func(n *chart.Node)
	declare = func(n *chart.Node) {
		if n.Atomic() {
			node(n, false)
			return
		}
		fmt.Fprintf(w, "  subgraph \"cluster_%s\" {\n", n.Id)
		fmt.Fprintf(w, "  label=<%s>\n", chart.Basename(n.Id))
		node(n, true)
		for _, kid := range n.Nodes {
			declare(kid)
		}
		fmt.Fprintf(w, "  }\n")
	}
	declare(def)

	var connect func(n *chart.Node)
	connect = func(n *chart.Node) {
		if n.StartNode != "" {
			fmt.Fprintf(w, "  \"%s\" -> \"%s\" [ style=\"dotted\" label = <start> ]\n",
				n.Id, n.StartNode)
		}
		for i, t := range n.Transitions {
			label := fmt.Sprintf("%d/%d", i+1, len(n.Transitions))
			if t.Guard != nil && t.Guard.Event != "" {
				label += " " + htmlEscape(chart.Basename(t.Guard.Event))
			}
			if t.Guard != nil && t.Guard.Predicate != nil {
				call := CallString(t.Guard.Predicate.Name, t.Guard.Predicate.Parameters)
				label += `<BR ALIGN="LEFT"/><FONT POINT-SIZE="6">` + htmlEscape(call) + `</FONT>`
			}
			if t.Action != nil {
				call := CallString(t.Action.Name, t.Action.Parameters)
				label += `<BR ALIGN="LEFT"/><FONT POINT-SIZE="6">` + htmlEscape(call) + `</FONT>`
			}

			color := "black"
			if fromNode == n.Id && toNode == t.To {
				color = "red"
			}

			fmt.Fprintf(w, "  \"%s\" -> \"%s\" [ color=\"%s\" label = <%s> ]\n",
				n.Id, t.To, color, label)
		}
		for _, kid := range n.Nodes {
			connect(kid)
		}
	}
	connect(def)

	fmt.Fprintf(w, "}\n")
	return w.Close()
}

// PNG generates a PNG image based on output from Dot.
//
// This function will write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(def *chart.Node, basename string, fromNode, toNode string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(def, dotfile, fromNode, toNode); err != nil {
		return pngname, err
	}
	cmd := "dot -Tpng -Gstart=1 " + dotname + " > " + pngname
	if err := exec.Command("bash", "-c", cmd).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

func eventGuarded(n *chart.Node) bool {
	for _, t := range n.Transitions {
		if t.Guard != nil && t.Guard.Event != "" {
			return true
		}
	}
	return false
}

func htmlEscape(s string) string {
	s = strings.Replace(s, "<", `&lt;`, -1)
	s = strings.Replace(s, ">", `&gt;`, -1)
	return s
}
