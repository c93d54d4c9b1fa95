package machine

import (
	"context"

	"github.com/rabe42/state-machines/chart"
)

// Control bounds what one operation on a machine may do.
type Control struct {
	// Limit is the maximum number of condition transitions that
	// may fire while the machine settles after an event or a
	// variable change.  One more and the operation fails with
	// StabilizationOverflow.
	Limit int
}

// DefaultControl is used when a Machine has no Control.
var DefaultControl = &Control{
	Limit: 100,
}

// Machine is a running instance of a chart.
//
// A Machine is not safe for concurrent use; callers serialize access
// (package fleet does).
type Machine struct {
	Id string

	// Chart is this machine's own validated copy of its
	// definition.  Replacing a chart in a warehouse never touches
	// a running machine.
	Chart *chart.Index

	// At is the id of the active node, or "" before Start().
	// Normally a leaf; after a failed action it can be the
	// composite node where the failure happened, since there is no
	// rollback.
	At string

	// Scopes holds the variable bindings of the active nodes.
	Scopes *Scopes

	Caps Capabilities

	Ctl *Control
}

// New makes a machine from a chart definition.  The definition is
// copied and validated; the machine doesn't run until Start().
func New(id string, def *chart.Node, caps Capabilities, ctl *Control) (*Machine, error) {
	ix, err := chart.Validate(def.Copy())
	if err != nil {
		return nil, err
	}
	return &Machine{
		Id:     id,
		Chart:  ix,
		Scopes: NewScopes(ix),
		Caps:   caps,
		Ctl:    ctl,
	}, nil
}

// Restore rebuilds a machine from a persisted snapshot: its chart
// copy, its active leaf, and its bindings.  No entry actions run.
func Restore(id string, def *chart.Node, at string, bindings map[string]map[string]chart.Value, caps Capabilities, ctl *Control) (*Machine, error) {
	m, err := New(id, def, caps, ctl)
	if err != nil {
		return nil, err
	}
	if _, have := m.Chart.Node(at); !have {
		return nil, &chart.UnresolvableTarget{NodeId: at, Reason: "snapshot node is not in the chart"}
	}
	if err := m.Scopes.restore(bindings); err != nil {
		return nil, err
	}
	// Heal scopes that an older snapshot might have dropped.
	for _, p := range m.Chart.Path(at) {
		if _, have := m.Scopes.vars[p.Id]; !have {
			m.Scopes.Declare(p.Id)
		}
	}
	m.At = at
	return m, nil
}

func (m *Machine) control() *Control {
	if m.Ctl != nil {
		return m.Ctl
	}
	return DefaultControl
}

// Start enters the chart: scopes and entry actions run from the root
// down to the initial leaf, and then the machine settles.
func (m *Machine) Start(ctx context.Context) (*Report, error) {
	if m.At != "" {
		return nil, Started
	}
	rep := &Report{}

	leaf, err := m.Chart.EffectiveLeaf(m.Chart.Root())
	if err != nil {
		return rep, err
	}
	for _, n := range m.Chart.Path(leaf.Id) {
		m.Scopes.Declare(n.Id)
		m.At = n.Id
		if n.OnEntry != nil {
			if err := m.invoke(ctx, n, n.OnEntry); err != nil {
				rep.To = m.At
				return rep, err
			}
		}
	}

	if err := m.settle(ctx, rep); err != nil {
		rep.To = m.At
		return rep, err
	}
	rep.To = m.At
	return rep, m.appendEnabled(ctx, rep)
}

// SendEvent offers an event to the machine.  When no guard wants the
// event, nothing changes and the report just restates what's enabled.
func (m *Machine) SendEvent(ctx context.Context, eventId string) (*Report, error) {
	if m.At == "" {
		return nil, NotStarted
	}
	if eventId == "" {
		return nil, EmptyEvent
	}
	rep := &Report{From: m.At, To: m.At}

	t, owner, err := m.findTransition(ctx, eventId)
	if err != nil {
		return rep, err
	}
	if t == nil {
		return rep, m.appendEnabled(ctx, rep)
	}

	f, err := m.fire(ctx, t, owner)
	f.Event = eventId
	rep.Fired = append(rep.Fired, f)
	rep.To = m.At
	if err != nil {
		return rep, err
	}

	if err := m.settle(ctx, rep); err != nil {
		rep.To = m.At
		return rep, err
	}
	rep.To = m.At
	return rep, m.appendEnabled(ctx, rep)
}

// SetVariable assigns a visible variable and lets the machine settle,
// since condition guards may now hold.
func (m *Machine) SetVariable(ctx context.Context, name string, v chart.Value) (*Report, error) {
	if m.At == "" {
		return nil, NotStarted
	}
	rep := &Report{From: m.At, To: m.At}

	if err := m.Scopes.Set(m.At, name, v); err != nil {
		return rep, err
	}

	if err := m.settle(ctx, rep); err != nil {
		rep.To = m.At
		return rep, err
	}
	rep.To = m.At
	return rep, m.appendEnabled(ctx, rep)
}

// EnabledEvents gives the sorted, distinct event ids that would fire
// a transition right now.
func (m *Machine) EnabledEvents(ctx context.Context) ([]string, error) {
	if m.At == "" {
		return nil, NotStarted
	}
	return m.enabledEvents(ctx)
}

func (m *Machine) appendEnabled(ctx context.Context, rep *Report) error {
	enabled, err := m.enabledEvents(ctx)
	if err != nil {
		return err
	}
	rep.Enabled = enabled
	return nil
}
