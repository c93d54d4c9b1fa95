package machine

import (
	"testing"

	"github.com/rabe42/state-machines/chart"
)

func scopedChart(t *testing.T) *chart.Index {
	t.Helper()
	def := &chart.Node{
		Id:        "scn:///S",
		StartNode: "scn:///S/Inner",
		Attributes: []*chart.VariableDeclaration{
			{Name: "n", Type: chart.TypeInteger, Value: chart.Integer(0)},
			{Name: "label", Type: chart.TypeString, Value: chart.String("outer")},
		},
		Nodes: []*chart.Node{
			{
				Id: "scn:///S/Inner",
				Attributes: []*chart.VariableDeclaration{
					{Name: "label", Type: chart.TypeString, Value: chart.String("inner")},
				},
			},
		},
	}
	ix, err := chart.Validate(def)
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

func TestScopesResolve(t *testing.T) {
	ix := scopedChart(t)
	s := NewScopes(ix)
	s.Declare("scn:///S")
	s.Declare("scn:///S/Inner")

	// The inner declaration shadows the outer one.
	v, err := s.Resolve("scn:///S/Inner", "label")
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "inner" {
		t.Fatalf("got %s", v)
	}

	// From the root, only the outer one is visible.
	v, err = s.Resolve("scn:///S", "label")
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "outer" {
		t.Fatalf("got %s", v)
	}

	// Names declared above resolve from below.
	v, err = s.Resolve("scn:///S/Inner", "n")
	if err != nil {
		t.Fatal(err)
	}
	if v != chart.Integer(0) {
		t.Fatalf("got %s", v)
	}

	if _, err = s.Resolve("scn:///S/Inner", "ghost"); err == nil {
		t.Fatal("expected an error")
	} else if _, is := err.(*UnknownVariable); !is {
		t.Fatalf("unexpected error type %T", err)
	}
}

func TestScopesSet(t *testing.T) {
	ix := scopedChart(t)
	s := NewScopes(ix)
	s.Declare("scn:///S")
	s.Declare("scn:///S/Inner")

	if err := s.Set("scn:///S/Inner", "n", chart.Integer(5)); err != nil {
		t.Fatal(err)
	}
	v, _ := s.Resolve("scn:///S", "n")
	if v != chart.Integer(5) {
		t.Fatalf("got %s", v)
	}

	// Setting the shadowing name must not touch the outer
	// binding.
	if err := s.Set("scn:///S/Inner", "label", chart.String("changed")); err != nil {
		t.Fatal(err)
	}
	v, _ = s.Resolve("scn:///S", "label")
	if v.Str != "outer" {
		t.Fatalf("outer binding disturbed: %s", v)
	}

	// A JSON-ish whole number lands in an integer variable.
	if err := s.Set("scn:///S/Inner", "n", chart.Number(7)); err != nil {
		t.Fatal(err)
	}
	v, _ = s.Resolve("scn:///S/Inner", "n")
	if v != chart.Integer(7) {
		t.Fatalf("got %#v", v)
	}

	err := s.Set("scn:///S/Inner", "n", chart.String("nope"))
	if err == nil {
		t.Fatal("expected a type mismatch")
	}
	tm, is := err.(*chart.TypeMismatch)
	if !is {
		t.Fatalf("unexpected error type %T", err)
	}
	if tm.Variable != "n" {
		t.Fatalf("got %#v", tm)
	}

	if err := s.Set("scn:///S/Inner", "ghost", chart.Integer(1)); err == nil {
		t.Fatal("expected unknown variable")
	}
}

func TestScopesClear(t *testing.T) {
	ix := scopedChart(t)
	s := NewScopes(ix)
	s.Declare("scn:///S")
	s.Declare("scn:///S/Inner")

	s.Clear("scn:///S/Inner")
	v, err := s.Resolve("scn:///S/Inner", "label")
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "outer" {
		t.Fatalf("cleared scope still shadows: %s", v)
	}

	// Re-declaring resets to initial values.
	s.Declare("scn:///S/Inner")
	if err := s.Set("scn:///S/Inner", "label", chart.String("dirty")); err != nil {
		t.Fatal(err)
	}
	s.Clear("scn:///S/Inner")
	s.Declare("scn:///S/Inner")
	v, _ = s.Resolve("scn:///S/Inner", "label")
	if v.Str != "inner" {
		t.Fatalf("got %s", v)
	}
}

func TestScopesBindings(t *testing.T) {
	ix := scopedChart(t)
	s := NewScopes(ix)
	s.Declare("scn:///S")
	s.Declare("scn:///S/Inner")
	if err := s.Set("scn:///S/Inner", "n", chart.Integer(3)); err != nil {
		t.Fatal(err)
	}

	bs := s.Bindings()
	if bs["scn:///S"]["n"] != chart.Integer(3) {
		t.Fatalf("got %#v", bs)
	}

	// The snapshot is detached.
	bs["scn:///S"]["n"] = chart.Integer(99)
	v, _ := s.Resolve("scn:///S", "n")
	if v != chart.Integer(3) {
		t.Fatal("snapshot shares storage with the scopes")
	}

	r := NewScopes(ix)
	if err := r.restore(s.Bindings()); err != nil {
		t.Fatal(err)
	}
	v, err := r.Resolve("scn:///S/Inner", "n")
	if err != nil {
		t.Fatal(err)
	}
	if v != chart.Integer(3) {
		t.Fatalf("got %s", v)
	}

	bad := map[string]map[string]chart.Value{
		"scn:///S": {"ghost": chart.Integer(1)},
	}
	if err := r.restore(bad); err == nil {
		t.Fatal("expected an error for an undeclared binding")
	}
}
