package machine

import (
	"context"
	"sort"

	"github.com/rabe42/state-machines/chart"
)

// Fired records one transition firing: which node's guard matched,
// what event (if any) drove it, and how the active leaf moved.
type Fired struct {
	// Source is the node that declared the transition.  It is on
	// the path of From but need not be From itself; an ancestor's
	// guard can move a deeply nested machine.
	Source string `json:"source"`

	// Event is the event id that matched the guard, or empty for a
	// condition transition.
	Event string `json:"event,omitempty"`

	// From and To are the active nodes before and after.
	From string `json:"from"`
	To   string `json:"to"`
}

// Report says what one operation did to a machine.
type Report struct {
	// From and To are the active nodes before and after the whole
	// operation.  From is empty for Start().
	From string `json:"from,omitempty"`
	To   string `json:"to"`

	// Fired lists every transition that fired, in order: at most
	// one for the event itself, then any condition transitions
	// that followed.
	Fired []*Fired `json:"fired,omitempty"`

	// Enabled is the sorted set of event ids that could fire a
	// transition now.  Nil when the operation failed.
	Enabled []string `json:"enabled"`
}

// findTransition picks the transition that should fire, or nil.
//
// The active nodes are scanned leaf first, so the deepest satisfied
// guard wins; within one node, declaration order decides.  With an
// eventId, only guards naming that event are considered; without,
// only pure condition guards (no event) are.  Either way an attached
// predicate must also hold.
func (m *Machine) findTransition(ctx context.Context, eventId string) (*chart.Transition, *chart.Node, error) {
	path := m.Chart.Path(m.At)
	for i := len(path) - 1; 0 <= i; i-- {
		n := path[i]
		for _, t := range n.Transitions {
			if t.Guard.Event != eventId {
				continue
			}
			if t.Guard.Predicate != nil {
				ok, err := m.eval(ctx, n, t.Guard.Predicate)
				if err != nil {
					return nil, nil, err
				}
				if !ok {
					continue
				}
			}
			return t, n, nil
		}
	}
	return nil, nil, nil
}

// fire runs one transition: exit up to the LCA, run the transition's
// action, then enter down to the target's effective leaf.  At moves
// as each node is left or entered, so a failure leaves At on the last
// node that was actually reached.
func (m *Machine) fire(ctx context.Context, t *chart.Transition, owner *chart.Node) (*Fired, error) {
	f := &Fired{
		Source: owner.Id,
		From:   m.At,
		To:     m.At,
	}

	target, have := m.Chart.Node(t.To)
	if !have {
		// Validation should have caught this.
		return f, &chart.UnresolvableTarget{NodeId: owner.Id, Ref: t.To, Reason: "no such node"}
	}
	lca := m.Chart.LCA(m.At, t.To)

	exit := func(n *chart.Node) error {
		if n.OnExit != nil {
			if err := m.invoke(ctx, n, n.OnExit); err != nil {
				f.To = m.At
				return err
			}
		}
		m.Scopes.Clear(n.Id)
		if p := m.Chart.Parent(n.Id); p != nil {
			m.At = p.Id
		} else {
			m.At = ""
		}
		return nil
	}

	for n, _ := m.Chart.Node(m.At); n != nil && n != lca; n, _ = m.Chart.Node(m.At) {
		if err := exit(n); err != nil {
			return f, err
		}
	}

	if t.Action != nil {
		if err := m.invoke(ctx, owner, t.Action); err != nil {
			f.To = m.At
			return f, err
		}
	}

	leaf, err := m.Chart.EffectiveLeaf(target)
	if err != nil {
		f.To = m.At
		return f, err
	}

	// The nodes to enter are those on the leaf's path below the
	// LCA.
	down := m.Chart.Path(leaf.Id)
	if lca != nil {
		for i, n := range down {
			if n == lca {
				down = down[i+1:]
				break
			}
		}
	}
	for _, n := range down {
		m.Scopes.Declare(n.Id)
		m.At = n.Id
		if n.OnEntry != nil {
			if err := m.invoke(ctx, n, n.OnEntry); err != nil {
				f.To = m.At
				return f, err
			}
		}
	}

	f.To = m.At
	return f, nil
}

// settle fires condition transitions until none is enabled, the
// control limit is hit, or something fails.  Firings are appended to
// the report.
func (m *Machine) settle(ctx context.Context, rep *Report) error {
	limit := m.control().Limit
	for count := 0; ; count++ {
		t, owner, err := m.findTransition(ctx, "")
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		if limit <= count {
			return &StabilizationOverflow{Limit: limit, At: m.At}
		}
		f, err := m.fire(ctx, t, owner)
		rep.Fired = append(rep.Fired, f)
		if err != nil {
			return err
		}
	}
}

// enabledEvents collects the distinct event ids that would fire a
// transition from the current configuration.
func (m *Machine) enabledEvents(ctx context.Context) ([]string, error) {
	var (
		path = m.Chart.Path(m.At)
		seen = make(map[string]bool, 4)
		out  = []string{}
	)
	for i := len(path) - 1; 0 <= i; i-- {
		n := path[i]
		for _, t := range n.Transitions {
			if t.Guard.Event == "" || seen[t.Guard.Event] {
				continue
			}
			if t.Guard.Predicate != nil {
				ok, err := m.eval(ctx, n, t.Guard.Predicate)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			seen[t.Guard.Event] = true
			out = append(out, t.Guard.Event)
		}
	}
	sort.Strings(out)
	return out, nil
}

// eval evaluates a predicate call for a guard owned by node n.
// Variable references resolve lexically from n.
func (m *Machine) eval(ctx context.Context, n *chart.Node, pc *chart.PredicateCall) (bool, error) {
	params, err := m.resolveParams(n, pc.Parameters)
	if err != nil {
		return false, err
	}
	ok, err := m.Caps.EvaluatePredicate(ctx, pc.Name, params)
	if err != nil {
		return false, &PredicateError{Name: pc.Name, Node: n.Id, Err: err}
	}
	return ok, nil
}

// invoke invokes an action call attached to node n.
func (m *Machine) invoke(ctx context.Context, n *chart.Node, ac *chart.ActionCall) error {
	params, err := m.resolveParams(n, ac.Parameters)
	if err != nil {
		return err
	}
	if err := m.Caps.InvokeAction(ctx, ac.Name, params); err != nil {
		return &ActionError{Name: ac.Name, Node: n.Id, Err: err}
	}
	return nil
}

// resolveParams replaces variable references with the values visible
// from node n.  Literals pass through.
func (m *Machine) resolveParams(n *chart.Node, params []*chart.Parameter) ([]*chart.Parameter, error) {
	out := make([]*chart.Parameter, len(params))
	for i, p := range params {
		if !p.Ref() {
			out[i] = p
			continue
		}
		v, err := m.Scopes.Resolve(n.Id, p.Name)
		if err != nil {
			return nil, err
		}
		out[i] = &chart.Parameter{Name: p.Name, Value: v}
	}
	return out, nil
}
