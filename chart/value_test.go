package chart

import (
	"encoding/json"
	"testing"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		description string
		in          interface{}
		want        Value
		bad         bool
	}{
		{description: "nil", in: nil, want: None},
		{description: "string", in: "queued", want: String("queued")},
		{description: "bool", in: true, want: Boolean(true)},
		{description: "int", in: 3, want: Integer(3)},
		{description: "int64", in: int64(-9), want: Integer(-9)},
		{description: "float", in: 1.5, want: Number(1.5)},
		{description: "whole float stays a number", in: 1.0, want: Number(1)},
		{description: "json.Number int", in: json.Number("42"), want: Integer(42)},
		{description: "json.Number float", in: json.Number("0.25"), want: Number(0.25)},
		{description: "map", in: map[string]interface{}{}, bad: true},
	}
	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			got, err := ValueOf(tc.in)
			if tc.bad {
				if err == nil {
					t.Fatalf("expected an error for %#v", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestValueEqual(t *testing.T) {
	if !Integer(1).Equal(Number(1)) {
		t.Fatal("integer 1 should equal number 1")
	}
	if Integer(1).Equal(Number(1.5)) {
		t.Fatal("integer 1 should not equal number 1.5")
	}
	if !String("a").Equal(String("a")) {
		t.Fatal("strings should compare")
	}
	if String("1").Equal(Integer(1)) {
		t.Fatal("a string is not a number")
	}
	if !None.Equal(Value{}) {
		t.Fatal("the zero Value is none")
	}
	if Boolean(false).Equal(None) {
		t.Fatal("false is not none")
	}
}

func TestValueCompare(t *testing.T) {
	if c, err := Compare(Integer(1), Number(2)); err != nil || c != -1 {
		t.Fatalf("got %d, %v", c, err)
	}
	if c, err := Compare(Number(2), Integer(1)); err != nil || c != 1 {
		t.Fatalf("got %d, %v", c, err)
	}
	if c, err := Compare(String("a"), String("b")); err != nil || c != -1 {
		t.Fatalf("got %d, %v", c, err)
	}
	if _, err := Compare(Boolean(true), Integer(1)); err == nil {
		t.Fatal("booleans should not be ordered")
	} else if _, is := err.(*Incomparable); !is {
		t.Fatalf("unexpected error type %T", err)
	}
}

func TestValueCoerce(t *testing.T) {
	v, err := Number(1).Coerce(TypeInteger)
	if err != nil {
		t.Fatal(err)
	}
	if v != Integer(1) {
		t.Fatalf("got %#v", v)
	}

	v, err = Integer(2).Coerce(TypeNumber)
	if err != nil {
		t.Fatal(err)
	}
	if v != Number(2) {
		t.Fatalf("got %#v", v)
	}

	if _, err = Number(1.5).Coerce(TypeInteger); err == nil {
		t.Fatal("1.5 is not an integer")
	}

	_, err = String("1").Coerce(TypeInteger)
	if err == nil {
		t.Fatal("strings do not coerce to integers")
	}
	tm, is := err.(*TypeMismatch)
	if !is {
		t.Fatalf("unexpected error type %T", err)
	}
	if tm.Want != TypeInteger || tm.Got != TypeString {
		t.Fatalf("got %#v", tm)
	}
}

func TestValueJSON(t *testing.T) {
	bs, err := json.Marshal(Integer(7))
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "7" {
		t.Fatalf("got %s", bs)
	}

	var v Value
	if err = json.Unmarshal([]byte(`"busy"`), &v); err != nil {
		t.Fatal(err)
	}
	if v != String("busy") {
		t.Fatalf("got %#v", v)
	}

	// A parameter without a value is a variable reference.
	var p Parameter
	if err = json.Unmarshal([]byte(`{"name":"n"}`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.Ref() {
		t.Fatalf("expected a reference; got %#v", p)
	}

	if err = json.Unmarshal([]byte(`{"name":"limit","value":10}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Ref() {
		t.Fatal("a literal is not a reference")
	}
	if !p.Value.Equal(Integer(10)) {
		t.Fatalf("got %#v", p.Value)
	}
}
