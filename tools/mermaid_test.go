package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rabe42/state-machines/chart"
)

func TestMermaid(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "g.mermaid")

	out, err := os.Create(filename)
	if err != nil {
		t.Fatal(err)
	}

	if err := Mermaid(chart.TurnstileChart(), out, nil); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	got := string(bs)

	if !strings.Contains(got, "graph TB") {
		t.Fatal(got)
	}
	if !strings.Contains(got, "subgraph") {
		t.Fatal(got)
	}
	if !strings.Contains(got, `"coin"`) {
		t.Fatal(got)
	}
	if !strings.Contains(got, "start") {
		t.Fatal(got)
	}
}
