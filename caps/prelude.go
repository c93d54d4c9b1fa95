package caps

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rabe42/state-machines/chart"
)

// Prelude returns a Registry preloaded with the capabilities that the
// shipped example charts use: the comparison predicates and the log,
// sleep, and http actions.
func Prelude() *Registry {
	r := NewRegistry()

	two := []ParamDecl{
		{Name: "a", Doc: "Left operand."},
		{Name: "b", Doc: "Right operand."},
	}

	r.RegisterPredicate(Decl{
		Name:   "eq",
		Doc:    "True when a equals b.  Integers and numbers compare numerically with each other.",
		Params: two,
	}, func(ctx context.Context, params []*chart.Parameter) (bool, error) {
		return params[0].Value.Equal(params[1].Value), nil
	})

	r.RegisterPredicate(Decl{
		Name:   "ne",
		Doc:    "True when a does not equal b.",
		Params: two,
	}, func(ctx context.Context, params []*chart.Parameter) (bool, error) {
		return !params[0].Value.Equal(params[1].Value), nil
	})

	ordered := func(name, doc string, accept func(int) bool) {
		r.RegisterPredicate(Decl{Name: name, Doc: doc, Params: two},
			func(ctx context.Context, params []*chart.Parameter) (bool, error) {
				c, err := chart.Compare(params[0].Value, params[1].Value)
				if err != nil {
					return false, err
				}
				return accept(c), nil
			})
	}
	ordered("lt", "True when a is less than b.", func(c int) bool { return c < 0 })
	ordered("le", "True when a is at most b.", func(c int) bool { return c <= 0 })
	ordered("gt", "True when b is less than a.", func(c int) bool { return 0 < c })
	ordered("ge", "True when b is at most a.", func(c int) bool { return 0 <= c })

	r.RegisterAction(Decl{
		Name: "log",
		Doc:  "Log the given parameters as fields.",
	}, func(ctx context.Context, params []*chart.Parameter) error {
		fields := make(log.Fields, len(params))
		for _, p := range params {
			fields[p.Name] = p.Value.Interface()
		}
		log.WithFields(fields).Info("chart log")
		return nil
	})

	r.RegisterAction(Decl{
		Name:   "sleep",
		Doc:    `Pause: an integer or number of milliseconds, or a duration string like "1500ms".`,
		Params: []ParamDecl{{Name: "duration"}},
	}, sleepAction)

	r.RegisterAction(Decl{
		Name: "http",
		Doc:  "Make an HTTP request.  Transport errors fail the action; the response status is only logged.",
		Params: []ParamDecl{
			{Name: "url", Type: chart.TypeString},
			{Name: "method", Type: chart.TypeString, Optional: true},
			{Name: "body", Type: chart.TypeString, Optional: true},
			{Name: "timeout", Doc: "Milliseconds.", Type: chart.TypeInteger, Optional: true},
		},
	}, httpAction())

	return r
}

func sleepAction(ctx context.Context, params []*chart.Parameter) error {
	var (
		d time.Duration
		v = params[0].Value
	)
	switch v.Type {
	case chart.TypeString:
		var err error
		if d, err = time.ParseDuration(v.Str); err != nil {
			return &BadCall{Name: "sleep", Complaint: err.Error()}
		}
	case chart.TypeInteger:
		d = time.Duration(v.Int) * time.Millisecond
	case chart.TypeNumber:
		d = time.Duration(v.Num * float64(time.Millisecond))
	default:
		return &BadCall{Name: "sleep", Complaint: "duration must be a string or a number"}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	return nil
}
