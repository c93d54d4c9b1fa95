package machine

import (
	"errors"
	"strconv"
)

// NotStarted occurs when an event or a variable change arrives before
// Start().
var NotStarted = errors.New("machine not started")

// Started occurs when Start() is called twice.
var Started = errors.New("machine already started")

// EmptyEvent occurs when SendEvent gets an empty event id.
var EmptyEvent = errors.New("empty event id")

// UnknownVariable occurs when a name doesn't resolve to a declared
// variable in any scope visible from the requesting node.
type UnknownVariable struct {
	Name string
	Node string
}

func (e *UnknownVariable) Error() string {
	return `variable "` + e.Name + `" is not in scope at node "` + e.Node + `"`
}

// StabilizationOverflow occurs when condition transitions keep firing
// past Control.Limit.  The usual cause is a cycle of predicate
// guards that never settles.
type StabilizationOverflow struct {
	Limit int
	At    string
}

func (e *StabilizationOverflow) Error() string {
	return "still not stable after " + strconv.Itoa(e.Limit) +
		` condition transitions (at node "` + e.At + `")`
}

// ActionError wraps a failure from an invoked action.
type ActionError struct {
	Name string
	Node string
	Err  error
}

func (e *ActionError) Error() string {
	return `action "` + e.Name + `" at node "` + e.Node + `" failed: ` + e.Err.Error()
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// PredicateError wraps a failure from an evaluated predicate.
type PredicateError struct {
	Name string
	Node string
	Err  error
}

func (e *PredicateError) Error() string {
	return `predicate "` + e.Name + `" at node "` + e.Node + `" failed: ` + e.Err.Error()
}

func (e *PredicateError) Unwrap() error {
	return e.Err
}
