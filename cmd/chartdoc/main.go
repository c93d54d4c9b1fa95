// chartdoc works on chart definition files: it renders HTML
// documentation, emits Mermaid and Graphviz diagrams, converts
// between YAML and JSON, reports structural trouble, and runs
// scripted sessions against charts before anything depends on them.
//
// For example:
//
//	chartdoc html -f turnstile.yaml > turnstile.html
//	chartdoc mermaid < turnstile.yaml
//	chartdoc analyze < turnstile.yaml
//	chartdoc exercise -charts turnstile.yaml -f session.yaml
//
// A chart is read from stdin when no -f is given.  An empty input
// gets the built-in turnstile example, which is handy for kicking the
// tires.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/service"
	"github.com/rabe42/state-machines/tools"

	"gopkg.in/yaml.v2"
)

func main() {

	if len(os.Args) < 2 {
		Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "html":
		fs := flag.NewFlagSet("html", flag.ExitOnError)
		filename := fs.String("f", "", "chart definition file (default stdin)")
		css := fs.String("css", "", "comma-separated stylesheet URLs")
		diagram := fs.Bool("diagram", false, "include a Mermaid diagram")
		fragment := fs.Bool("fragment", false, "emit an HTML fragment instead of a page")
		fs.Parse(os.Args[2:])

		def, err := readChart(*filename)
		if err != nil {
			croak(err)
		}
		if _, err := chart.Validate(def); err != nil {
			croak(err)
		}

		if *fragment {
			err = tools.RenderChartHTML(def, os.Stdout)
		} else {
			var cssFiles []string
			if *css != "" {
				cssFiles = strings.Split(*css, ",")
			}
			err = tools.RenderChartPage(def, os.Stdout, cssFiles, *diagram)
		}
		if err != nil {
			croak(err)
		}

	case "mermaid":
		fs := flag.NewFlagSet("mermaid", flag.ExitOnError)
		filename := fs.String("f", "", "chart definition file (default stdin)")
		events := fs.Bool("events", true, "label edges with guard events")
		predicates := fs.Bool("predicates", true, "label edges with guard predicates")
		fill := fs.String("fill", "#bcf2db", "fill color for nodes with actions")
		fs.Parse(os.Args[2:])

		def, err := readChart(*filename)
		if err != nil {
			croak(err)
		}

		opts := &tools.MermaidOpts{
			ShowEvents:     *events,
			ShowPredicates: *predicates,
			ActionFill:     *fill,
		}
		if err := tools.Mermaid(def, os.Stdout, opts); err != nil {
			croak(err)
		}

	case "dot":
		fs := flag.NewFlagSet("dot", flag.ExitOnError)
		filename := fs.String("f", "", "chart definition file (default stdin)")
		from := fs.String("from", "", "id of a node to mark as transition source")
		to := fs.String("to", "", "id of a node to mark as transition target")
		fs.Parse(os.Args[2:])

		def, err := readChart(*filename)
		if err != nil {
			croak(err)
		}

		if err := tools.Dot(def, os.Stdout, *from, *to); err != nil {
			croak(err)
		}

	case "analyze":
		fs := flag.NewFlagSet("analyze", flag.ExitOnError)
		filename := fs.String("f", "", "chart definition file (default stdin)")
		fs.Parse(os.Args[2:])

		def, err := readChart(*filename)
		if err != nil {
			croak(err)
		}

		a, err := tools.Analyze(def)
		if err != nil {
			croak(err)
		}
		bs, err := yaml.Marshal(a)
		if err != nil {
			croak(err)
		}
		if _, err := os.Stdout.Write(bs); err != nil {
			croak(err)
		}

	case "yamltojson":
		pretty := false
		switch len(os.Args) {
		case 2:
		case 3:
			if os.Args[2] != "-p" {
				croak(fmt.Errorf("unsupported args: %v", os.Args[1:]))
			}
			pretty = true
		default:
			croak(fmt.Errorf("unsupported args: %v", os.Args[1:]))
		}

		def, err := readChart("")
		if err != nil {
			croak(err)
		}

		var bs []byte
		if pretty {
			bs, err = json.MarshalIndent(def, "", "  ")
		} else {
			bs, err = json.Marshal(def)
		}
		if err != nil {
			croak(err)
		}
		if _, err := os.Stdout.Write(bs); err != nil {
			croak(err)
		}

	case "jsontoyaml":
		def, err := readChart("")
		if err != nil {
			croak(err)
		}

		bs, err := yaml.Marshal(def)
		if err != nil {
			croak(err)
		}
		if _, err := os.Stdout.Write(bs); err != nil {
			croak(err)
		}

	case "exercise":
		fs := flag.NewFlagSet("exercise", flag.ExitOnError)
		filename := fs.String("f", "", "session file (default stdin)")
		charts := fs.String("charts", "", "comma-separated chart definition files")
		fs.Parse(os.Args[2:])

		var (
			bs  []byte
			err error
		)
		if *filename == "" {
			bs, err = io.ReadAll(os.Stdin)
		} else {
			bs, err = tools.ReadFileWithInlines(*filename)
		}
		if err != nil {
			croak(err)
		}

		var session tools.Session
		if err := yaml.Unmarshal(bs, &session); err != nil {
			croak(err)
		}

		ctx := context.Background()
		svc := service.NewService(service.Options{})
		defer svc.Shutdown()

		for _, name := range strings.Split(*charts, ",") {
			if name == "" {
				continue
			}
			def, err := readChart(name)
			if err != nil {
				croak(err)
			}
			if _, err := svc.PutChart(ctx, def); err != nil {
				croak(err)
			}
		}

		if err := session.Run(ctx, svc); err != nil {
			croak(err)
		}

	default:
		fmt.Printf("Unknown subcommand \"%s\"\n", os.Args[1])
		Usage()
		os.Exit(1)
	}
}

// readChart reads a chart definition from the named file, or from
// stdin when the name is empty.  '%inline' references are expanded
// first.
func readChart(filename string) (*chart.Node, error) {
	var (
		bs  []byte
		err error
	)
	if filename == "" {
		bs, err = tools.ReadAllWithInlines(os.Stdin, ".")
	} else {
		bs, err = tools.ReadFileWithInlines(filename)
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(bs)) == 0 {
		return chart.TurnstileChart(), nil
	}
	return chart.Read(bs)
}

func croak(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func Usage() {
	fmt.Printf("Subcommands:\n\n")
	fmt.Printf("  html       render a chart as an HTML page (-f, -css, -diagram, -fragment)\n")
	fmt.Printf("  mermaid    emit a Mermaid diagram (-f, -events, -predicates, -fill)\n")
	fmt.Printf("  dot        emit a Graphviz dot file (-f, -from, -to)\n")
	fmt.Printf("  analyze    report a chart's shape and trouble spots (-f)\n")
	fmt.Printf("  yamltojson convert a chart definition to JSON (-p to pretty-print)\n")
	fmt.Printf("  jsontoyaml convert a chart definition to YAML\n")
	fmt.Printf("  exercise   run a scripted session (-f, -charts)\n")
}
