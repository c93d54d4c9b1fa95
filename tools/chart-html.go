package tools

import (
	"fmt"
	"io"
	"strings"

	"github.com/rabe42/state-machines/chart"

	md "github.com/russross/blackfriday/v2"
)

// RenderChartHTML writes an HTML fragment documenting the given chart.
// Nodes appear in declaration order, parents before children, so the
// document reads the way the chart was written.
func RenderChartHTML(def *chart.Node, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	if def.Description != "" {
		f(`<div class="chartDoc doc">%s</div>`, md.Run([]byte(def.Description)))
	}

	f(`<div class="nodes"><table>`)

	var fn func(node *chart.Node)
	fn = func(node *chart.Node) {
		f(`<tr class="node"><td><span id="%s" class="nodeName">%s</span></td><td>`, node.Id, node.Id)

		if node.Description != "" {
			f(`<div class="nodeDoc doc">%s</div>`, md.Run([]byte(node.Description)))
		}
		if node.StartNode != "" {
			f(`<div>start: <a href="#%s"><code>%s</code></a></div>`, node.StartNode, node.StartNode)
		}
		if node.OnEntry != nil {
			f(`<div>on entry: <code>%s</code></div>`, CallString(node.OnEntry.Name, node.OnEntry.Parameters))
		}
		if node.OnExit != nil {
			f(`<div>on exit: <code>%s</code></div>`, CallString(node.OnExit.Name, node.OnExit.Parameters))
		}

		if 0 < len(node.Attributes) {
			f(`<div class="attributes"><table>`)
			for _, d := range node.Attributes {
				f(`<tr><td><code>%s</code></td><td>%s</td><td><code>%s</code></td></tr>`,
					d.Name, d.Type, d.Value.String())
			}
			f(`</table></div>`)
		}

		if 0 < len(node.Transitions) {
			f(`<div class="transitions">`)
			f(`<table>`)
			for i, t := range node.Transitions {
				f(`<tr><td><div class="transitionNum">%d</div></td><td>`, i)
				f(`<table>`)
				if t.Guard != nil && t.Guard.Event != "" {
					f(`<tr><td></td><td>event</td>`)
					f(`<td><code>%s</code></td></tr>`, t.Guard.Event)
				}
				if t.Guard != nil && t.Guard.Predicate != nil {
					f(`<tr><td></td><td>predicate</td>`)
					f(`<td><code>%s</code></td></tr>`, CallString(t.Guard.Predicate.Name, t.Guard.Predicate.Parameters))
				}
				if t.To != "" {
					f(`<tr><td></td><td>target</td>`)
					f(`<td><a href="#%s"><code>%s</code></a></td></tr>`, t.To, t.To)
				}
				if t.Action != nil {
					f(`<tr><td></td><td>action</td>`)
					f(`<td><code>%s</code></td></tr>`, CallString(t.Action.Name, t.Action.Parameters))
				}
				f(`</table>`)
				f(`</td></tr>`)
			}
			f(`</table>`)
			f(`</div>`)
		}

		f(`</td></tr>`)

		for _, kid := range node.Nodes {
			fn(kid)
		}
	}
	fn(def)

	f(`</table></div>`)

	return nil
}

// CallString renders an action or predicate call the way a chart
// author would write it: eq(x=count, y=0).  A parameter without a
// value is a variable reference and shows as its bare name.
func CallString(name string, params []*chart.Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Ref() {
			parts = append(parts, p.Name)
			continue
		}
		parts = append(parts, p.Name+"="+p.Value.String())
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// RenderChartPage writes a complete HTML page documenting the given
// chart, optionally with a Mermaid diagram rendered client-side.
func RenderChartPage(def *chart.Node, out io.Writer, cssFiles []string, includeDiagram bool) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/chart-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, def.Id)

	if includeDiagram {
		fmt.Fprintf(out, `
  <script src="https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"></script>
  <script>mermaid.initialize({startOnLoad: true});</script>
`)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, def.Id)

	if includeDiagram {
		fmt.Fprintf(out, `<pre class="mermaid">`+"\n")
		if err := Mermaid(def, nopCloser{out}, nil); err != nil {
			return err
		}
		fmt.Fprintf(out, `</pre>`+"\n")
	}

	if err := RenderChartHTML(def, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// Mermaid wants to close what it writes, which a page in progress
// can't allow.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// ReadAndRenderChartPage reads, validates, and documents a chart
// definition file.
func ReadAndRenderChartPage(filename string, cssFiles []string, out io.Writer, includeDiagram bool) error {
	def, err := chart.ReadFile(filename)
	if err != nil {
		return err
	}

	if _, err = chart.Validate(def); err != nil {
		return err
	}

	return RenderChartPage(def, out, cssFiles, includeDiagram)
}
