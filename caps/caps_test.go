package caps

import (
	"context"
	"testing"

	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/machine"
)

var _ machine.Capabilities = NewRegistry()

func lit(name string, x interface{}) *chart.Parameter {
	v, err := chart.ValueOf(x)
	if err != nil {
		panic(err)
	}
	return &chart.Parameter{Name: name, Value: v}
}

func ref(name string) *chart.Parameter {
	return &chart.Parameter{Name: name}
}

func TestRegistryUnknown(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	err := r.InvokeAction(ctx, "nope", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, is := err.(*UnknownCapability); !is {
		t.Fatalf("got %T: %v", err, err)
	}

	if _, err = r.EvaluatePredicate(ctx, "nope", nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRegistryChecks(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var got []*chart.Parameter
	r.RegisterAction(Decl{
		Name: "notify",
		Params: []ParamDecl{
			{Name: "target", Type: chart.TypeString},
			{Name: "count", Type: chart.TypeInteger, Optional: true},
		},
	}, func(ctx context.Context, params []*chart.Parameter) error {
		got = params
		return nil
	})

	tests := []struct {
		description string
		params      []*chart.Parameter
		ok          bool
	}{
		{"required only", []*chart.Parameter{lit("t", "x")}, true},
		{"all parameters", []*chart.Parameter{lit("t", "x"), lit("n", 3)}, true},
		{"whole number as integer", []*chart.Parameter{lit("t", "x"), lit("n", 3.0)}, true},
		{"missing required", nil, false},
		{"too many", []*chart.Parameter{lit("t", "x"), lit("n", 3), lit("z", 4)}, false},
		{"wrong type", []*chart.Parameter{lit("t", 42)}, false},
		{"unresolved reference", []*chart.Parameter{ref("t")}, false},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			got = nil
			err := r.InvokeAction(ctx, "notify", test.params)
			if test.ok {
				if err != nil {
					t.Fatal(err)
				}
				if len(got) != len(test.params) {
					t.Fatalf("action saw %d params", len(got))
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if _, is := err.(*BadCall); !is {
				t.Fatalf("got %T: %v", err, err)
			}
		})
	}
}

func TestRegistryListing(t *testing.T) {
	r := NewRegistry()
	r.RegisterPredicate(Decl{Name: "odd"}, func(ctx context.Context, params []*chart.Parameter) (bool, error) {
		return false, nil
	})
	r.RegisterAction(Decl{Name: "beep"}, func(ctx context.Context, params []*chart.Parameter) error {
		return nil
	})
	r.RegisterAction(Decl{Name: "alarm"}, func(ctx context.Context, params []*chart.Parameter) error {
		return nil
	})

	ds := r.Capabilities()
	want := []string{"alarm", "beep", "odd"}
	if len(ds) != len(want) {
		t.Fatalf("got %d capabilities", len(ds))
	}
	for i, name := range want {
		if ds[i].Name != name {
			t.Fatalf("capability %d is %s, wanted %s", i, ds[i].Name, name)
		}
	}
	if ds[0].Kind != KindAction || ds[2].Kind != KindPredicate {
		t.Fatal("wrong kinds in the listing")
	}
}

func TestRegistryShadow(t *testing.T) {
	ctx := context.Background()
	r := Prelude()

	// An unchecked eq that always holds replaces the prelude's.
	r.RegisterPredicate(Decl{Name: "eq"}, func(ctx context.Context, params []*chart.Parameter) (bool, error) {
		return true, nil
	})

	ok, err := r.EvaluatePredicate(ctx, "eq", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("the shadowing eq didn't run")
	}
}
