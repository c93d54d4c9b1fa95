package machine

import (
	"context"

	"github.com/rabe42/state-machines/chart"
)

// Capabilities is everything a machine wants from the world outside
// its chart: actions with effects and predicates with answers.
//
// The machine resolves variable references before calling, so the
// parameters given here are always literal name/value pairs.  An
// error from either method stops the operation in progress; the
// machine does not retry and does not undo work already done.
//
// Package caps provides the standard implementation.
type Capabilities interface {
	InvokeAction(ctx context.Context, name string, params []*chart.Parameter) error
	EvaluatePredicate(ctx context.Context, name string, params []*chart.Parameter) (bool, error)
}
