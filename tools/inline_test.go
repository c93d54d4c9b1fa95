package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInline(t *testing.T) {
	input := `
I like %inline("tacos"), and
I also like %inline("queso").
Both are delicious.
`
	want := `
I like TACOS, and
I also like QUESO.
Both are delicious.
`

	find := func(name string) ([]byte, error) {
		return []byte(strings.ToUpper(name)), nil
	}

	got, err := Inline([]byte(input), find)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Fatalf("got %s", got)
	}
}

func TestReadFileWithInlines(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "doc.md"), []byte("The doors."), 0644); err != nil {
		t.Fatal(err)
	}
	def := `id: scn:///Doors
description: '%inline("doc.md")'
`
	if err := os.WriteFile(filepath.Join(dir, "doors.yaml"), []byte(def), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFileWithInlines(filepath.Join(dir, "doors.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "The doors.") {
		t.Fatalf("got %s", got)
	}
}
