package caps

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rabe42/state-machines/chart"
)

// ActionFunc is a Go function behind a chart action.  Parameters
// arrive in call order with concrete values only; the machine has
// already resolved any variable references.
type ActionFunc func(ctx context.Context, params []*chart.Parameter) error

// PredicateFunc is a Go function behind a guard predicate.
type PredicateFunc func(ctx context.Context, params []*chart.Parameter) (bool, error)

// Capability kinds as they appear in listings.
const (
	KindAction    = "action"
	KindPredicate = "predicate"
)

// ParamDecl describes one formal parameter of a capability.
//
// The Name here is the formal name for documentation.  Call sites
// label their parameters however they like (a predicate parameter's
// label is the variable name when the parameter is a reference), so
// calls are checked positionally, not by name.
type ParamDecl struct {
	Name string `json:"name" yaml:"name"`

	// Doc describes the parameter in English.  Audience is chart
	// authors.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Type constrains the parameter's value.  Empty means any
	// concrete type is fine.
	Type chart.ValueType `json:"type,omitempty" yaml:"type,omitempty"`

	// Optional means the parameter can be omitted.  Optional
	// parameters must trail the required ones.
	Optional bool `json:"optional,omitempty" yaml:",omitempty"`
}

// Decl is what a capability publishes about itself.  The service's
// capability listing is just the sorted Decls of a Registry.
type Decl struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`

	// Doc describes the capability in English and Markdown.
	// Audience is chart authors, not end users.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Params, if given, enables call checking: arity and value
	// types are verified before the function runs.  A Decl without
	// Params accepts any call.
	Params []ParamDecl `json:"params,omitempty" yaml:"params,omitempty"`
}

// check verifies a call against the declaration.
func (d *Decl) check(params []*chart.Parameter) error {
	for _, p := range params {
		if p.Ref() {
			return &BadCall{Name: d.Name, Complaint: `parameter "` + p.Name + `" is an unresolved variable reference`}
		}
	}
	if d.Params == nil {
		return nil
	}
	required := 0
	for _, pd := range d.Params {
		if !pd.Optional {
			required++
		}
	}
	if len(params) < required || len(d.Params) < len(params) {
		want := strconv.Itoa(required)
		if required != len(d.Params) {
			want += ".." + strconv.Itoa(len(d.Params))
		}
		return &BadCall{Name: d.Name, Complaint: "want " + want + " parameters, got " + strconv.Itoa(len(params))}
	}
	for i, p := range params {
		pd := d.Params[i]
		if !pd.Type.Concrete() {
			continue
		}
		if _, err := p.Value.Coerce(pd.Type); err != nil {
			return &BadCall{Name: d.Name, Complaint: `parameter "` + p.Name + `" is not a ` + string(pd.Type)}
		}
	}
	return nil
}

// UnknownCapability occurs when a machine calls a name that nothing
// registered.
type UnknownCapability struct {
	Name string
	Kind string
}

func (e *UnknownCapability) Error() string {
	return `capability "` + e.Name + `" (` + e.Kind + `) is not registered`
}

// BadCall occurs when a call doesn't agree with the capability's
// declared parameters.
type BadCall struct {
	Name      string
	Complaint string
}

func (e *BadCall) Error() string {
	return `bad call of "` + e.Name + `": ` + e.Complaint
}

type action struct {
	Decl
	f ActionFunc
}

type predicate struct {
	Decl
	f PredicateFunc
}

// Registry maps capability names to Go functions.  It implements
// machine.Capabilities, so a Registry can be handed directly to a
// machine.
//
// Actions and predicates live in separate namespaces, as they do in
// charts.  Registration is last-wins so a host can shadow a prelude
// capability with its own.
type Registry struct {
	sync.RWMutex

	actions    map[string]*action
	predicates map[string]*predicate
}

// NewRegistry makes an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		actions:    make(map[string]*action),
		predicates: make(map[string]*predicate),
	}
}

// RegisterAction adds (or replaces) an action.
func (r *Registry) RegisterAction(d Decl, f ActionFunc) {
	d.Kind = KindAction
	r.Lock()
	r.actions[d.Name] = &action{Decl: d, f: f}
	r.Unlock()
}

// RegisterPredicate adds (or replaces) a predicate.
func (r *Registry) RegisterPredicate(d Decl, f PredicateFunc) {
	d.Kind = KindPredicate
	r.Lock()
	r.predicates[d.Name] = &predicate{Decl: d, f: f}
	r.Unlock()
}

// InvokeAction runs the named action after checking the call against
// its declaration.
func (r *Registry) InvokeAction(ctx context.Context, name string, params []*chart.Parameter) error {
	r.RLock()
	a, have := r.actions[name]
	r.RUnlock()
	if !have {
		return &UnknownCapability{Name: name, Kind: KindAction}
	}
	if err := a.check(params); err != nil {
		return err
	}
	return a.f(ctx, params)
}

// EvaluatePredicate runs the named predicate after checking the call
// against its declaration.
func (r *Registry) EvaluatePredicate(ctx context.Context, name string, params []*chart.Parameter) (bool, error) {
	r.RLock()
	p, have := r.predicates[name]
	r.RUnlock()
	if !have {
		return false, &UnknownCapability{Name: name, Kind: KindPredicate}
	}
	if err := p.check(params); err != nil {
		return false, err
	}
	return p.f(ctx, params)
}

// Capabilities lists everything registered, predicates and actions
// together, sorted by kind and then by name.
func (r *Registry) Capabilities() []Decl {
	r.RLock()
	ds := make([]Decl, 0, len(r.actions)+len(r.predicates))
	for _, a := range r.actions {
		ds = append(ds, a.Decl)
	}
	for _, p := range r.predicates {
		ds = append(ds, p.Decl)
	}
	r.RUnlock()
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Kind != ds[j].Kind {
			return ds[i].Kind < ds[j].Kind
		}
		return ds[i].Name < ds[j].Name
	})
	return ds
}
