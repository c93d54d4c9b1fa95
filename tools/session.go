package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/service"

	log "github.com/sirupsen/logrus"
)

// Step is one move in a Session: start a machine, send it an event,
// assign variables, wait, and then check where things stand.
type Step struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Start starts a machine from the chart with this id.  Later
	// steps refer to the machine by the alias As, or by the chart
	// id when As is empty.
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	As    string `json:"as,omitempty" yaml:"as,omitempty"`

	// Machine is the alias of the machine this step talks to.
	// Defaults to the machine the previous steps talked to.
	Machine string `json:"machine,omitempty" yaml:"machine,omitempty"`

	// Send sends this event.
	Send string `json:"send,omitempty" yaml:"send,omitempty"`

	// Set assigns variables, in name order, before any
	// expectations are checked.
	Set map[string]chart.Value `json:"set,omitempty" yaml:"set,omitempty"`

	// Wait pauses the session, which gives timers a chance to
	// fire.  A duration string like "500ms".
	Wait string `json:"wait,omitempty" yaml:"wait,omitempty"`

	// ExpectError inverts the step: its operations must fail.
	ExpectError bool `json:"expectError,omitempty" yaml:"expectError,omitempty"`

	// ExpectAt is the node the machine must sit at after the
	// step's operations.
	ExpectAt string `json:"expectAt,omitempty" yaml:"expectAt,omitempty"`

	// ExpectEnabled is the exact set of events the machine must
	// then be willing to hear.
	ExpectEnabled []string `json:"expectEnabled,omitempty" yaml:"expectEnabled,omitempty"`

	// ExpectVars gives values that variables must then have.
	ExpectVars map[string]chart.Value `json:"expectVars,omitempty" yaml:"expectVars,omitempty"`
}

// Session is a scripted exercise of one or more charts.  Sessions
// make nice executable documentation: a chart author writes down what
// should happen, and Run checks that it does.
type Session struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	Steps []*Step `json:"steps" yaml:"steps"`
}

// Run processes all the steps in the Session against the given
// service.  The first disappointment stops the run.
func (s *Session) Run(ctx context.Context, svc *service.Service) error {

	machines := make(map[string]string)
	current := ""

	for i, step := range s.Steps {
		if step.Doc != "" {
			log.WithField("step", i).Info(step.Doc)
		}

		var opErr error

		if step.Start != "" {
			alias := step.As
			if alias == "" {
				alias = step.Start
			}
			mid, _, err := svc.Start(ctx, step.Start)
			if err == nil {
				machines[alias] = mid
				current = alias
			}
			opErr = err
		}

		if step.Machine != "" {
			current = step.Machine
		}

		needMachine := step.Send != "" || 0 < len(step.Set) ||
			step.ExpectAt != "" || step.ExpectEnabled != nil || step.ExpectVars != nil

		mid := ""
		if needMachine {
			var have bool
			if mid, have = machines[current]; !have {
				return fmt.Errorf("step %d: no machine %q in this session", i, current)
			}
		}

		if step.Send != "" && opErr == nil {
			_, opErr = svc.SendEvent(ctx, mid, step.Send)
		}

		if 0 < len(step.Set) && opErr == nil {
			names := make([]string, 0, len(step.Set))
			for name := range step.Set {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if _, err := svc.SetVariable(ctx, mid, name, step.Set[name]); err != nil {
					opErr = err
					break
				}
			}
		}

		if step.ExpectError {
			if opErr == nil {
				return fmt.Errorf("step %d: expected an error", i)
			}
			opErr = nil
		}
		if opErr != nil {
			return fmt.Errorf("step %d: %w", i, opErr)
		}

		if err := s.pause(i, step.Wait); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		if step.ExpectAt != "" || step.ExpectVars != nil {
			st, err := svc.Status(ctx, mid)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if step.ExpectAt != "" && st.At != step.ExpectAt {
				return fmt.Errorf("step %d: at %s, wanted %s", i, st.At, step.ExpectAt)
			}
			for name, want := range step.ExpectVars {
				got, have := findBinding(st.Bindings, name)
				if !have {
					return fmt.Errorf("step %d: no variable %q", i, name)
				}
				if !got.Equal(want) {
					return fmt.Errorf("step %d: %s is %s, wanted %s", i, name, got.String(), want.String())
				}
			}
		}

		if step.ExpectEnabled != nil {
			enabled, err := svc.EnabledEvents(ctx, mid)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			want := append([]string{}, step.ExpectEnabled...)
			sort.Strings(want)
			mismatch := len(enabled) != len(want)
			if !mismatch {
				for j, e := range enabled {
					if e != want[j] {
						mismatch = true
						break
					}
				}
			}
			if mismatch {
				return fmt.Errorf("step %d: enabled %v, wanted %v", i, enabled, want)
			}
		}
	}

	return nil
}

func (s *Session) pause(step int, wait string) error {
	if wait == "" {
		return nil
	}
	d, err := time.ParseDuration(wait)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"step": step, "wait": d}).Debug("session pause")
	time.Sleep(d)
	return nil
}

// findBinding resolves a name the way a machine would: the deepest
// active scope that declares it wins.  A node id contains its
// ancestors' ids, so deeper means longer.
func findBinding(bindings map[string]map[string]chart.Value, name string) (chart.Value, bool) {
	var (
		found bool
		depth int
		v     chart.Value
	)
	for nodeId, scope := range bindings {
		u, have := scope[name]
		if !have {
			continue
		}
		if !found || depth < len(nodeId) {
			found, depth, v = true, len(nodeId), u
		}
	}
	return v, found
}
