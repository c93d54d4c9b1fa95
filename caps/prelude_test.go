package caps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rabe42/state-machines/chart"
)

func TestPreludeComparisons(t *testing.T) {
	ctx := context.Background()
	r := Prelude()

	tests := []struct {
		description string
		predicate   string
		a, b        interface{}
		want        bool
	}{
		{"integer equality", "eq", 1, 1, true},
		{"integer meets number", "eq", 1, 1.0, true},
		{"different strings", "eq", "on", "off", false},
		{"ne", "ne", 1, 2, true},
		{"lt", "lt", 1, 2, true},
		{"lt mixed numerics", "lt", 1.5, 2, true},
		{"le on equals", "le", 2, 2, true},
		{"gt", "gt", 3, 2, true},
		{"ge below", "ge", 1, 2, false},
		{"string order", "lt", "a", "b", true},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			params := []*chart.Parameter{lit("a", test.a), lit("b", test.b)}
			got, err := r.EvaluatePredicate(ctx, test.predicate, params)
			if err != nil {
				t.Fatal(err)
			}
			if got != test.want {
				t.Fatalf("got %v, wanted %v", got, test.want)
			}
		})
	}

	params := []*chart.Parameter{lit("a", "x"), lit("b", 1)}
	if _, err := r.EvaluatePredicate(ctx, "lt", params); err == nil {
		t.Fatal("expected an error for incomparable values")
	}
}

func TestPreludeLog(t *testing.T) {
	r := Prelude()
	params := []*chart.Parameter{lit("message", "hello"), lit("n", 1)}
	if err := r.InvokeAction(context.Background(), "log", params); err != nil {
		t.Fatal(err)
	}
}

func TestPreludeSleep(t *testing.T) {
	ctx := context.Background()
	r := Prelude()

	if err := r.InvokeAction(ctx, "sleep", []*chart.Parameter{lit("duration", "1ms")}); err != nil {
		t.Fatal(err)
	}
	if err := r.InvokeAction(ctx, "sleep", []*chart.Parameter{lit("duration", 1)}); err != nil {
		t.Fatal(err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := r.InvokeAction(canceled, "sleep", []*chart.Parameter{lit("duration", "10s")}); err == nil {
		t.Fatal("expected an error from a canceled sleep")
	}
}

func TestHTTPAction(t *testing.T) {
	var (
		hits    int
		cookied bool
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if _, err := r.Cookie("session"); err == nil {
			cookied = true
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1"})
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx := context.Background()
	r := Prelude()

	params := []*chart.Parameter{lit("url", ts.URL)}
	if err := r.InvokeAction(ctx, "http", params); err != nil {
		t.Fatal(err)
	}
	if err := r.InvokeAction(ctx, "http", params); err != nil {
		t.Fatal(err)
	}

	if hits != 2 {
		t.Fatalf("the server saw %d requests", hits)
	}
	if !cookied {
		t.Fatal("the second request carried no session cookie")
	}
}

func TestHTTPRequestTestResponse(t *testing.T) {
	r := &HTTPRequest{
		URL:          "http://example.invalid/",
		TestResponse: &HTTPResponse{StatusCode: 200, Status: "200 OK", Body: "canned"},
	}
	resp, err := r.Do(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body != "canned" {
		t.Fatalf("got body %q", resp.Body)
	}
}
