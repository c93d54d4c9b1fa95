/* Copyright 2026 Rabe42
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package warehouse is the registry of validated chart definitions,
// with an optional Store for persistence across restarts.
package warehouse

import (
	"context"
	"sort"
	"sync"

	"github.com/rabe42/state-machines/chart"
)

// NotFound occurs when a chart id isn't in the warehouse.
type NotFound struct {
	Id string
}

func (e *NotFound) Error() string {
	return `chart "` + e.Id + `" not found`
}

// Warehouse holds validated charts by their root ids.
//
// Put replaces; nothing ever mutates a stored chart.  A machine
// started from an earlier version of a chart keeps running its own
// copy undisturbed.
type Warehouse struct {
	sync.RWMutex

	charts map[string]*chart.Node
}

// NewWarehouse makes an empty warehouse.
func NewWarehouse() *Warehouse {
	return &Warehouse{
		charts: make(map[string]*chart.Node),
	}
}

// Put validates the definition and stores it under its root id,
// replacing any previous version.  The definition belongs to the
// warehouse afterwards.
func (w *Warehouse) Put(def *chart.Node) (string, error) {
	if _, err := chart.Validate(def); err != nil {
		return "", err
	}
	w.Lock()
	w.charts[def.Id] = def
	w.Unlock()
	return def.Id, nil
}

// Get returns the stored chart.  Callers must not modify it; a
// machine makes its own copy.
func (w *Warehouse) Get(id string) (*chart.Node, error) {
	w.RLock()
	def, have := w.charts[id]
	w.RUnlock()
	if !have {
		return nil, &NotFound{Id: id}
	}
	return def, nil
}

// Remove forgets a chart.  Machines running it are unaffected.
func (w *Warehouse) Remove(id string) error {
	w.Lock()
	defer w.Unlock()
	if _, have := w.charts[id]; !have {
		return &NotFound{Id: id}
	}
	delete(w.charts, id)
	return nil
}

// Ids lists the stored chart ids, sorted.
func (w *Warehouse) Ids() []string {
	w.RLock()
	ids := make([]string, 0, len(w.charts))
	for id := range w.charts {
		ids = append(ids, id)
	}
	w.RUnlock()
	sort.Strings(ids)
	return ids
}

// MachineState is a machine snapshot as stored: enough to restore the
// machine without running any entry actions.
type MachineState struct {
	Id string `json:"id,omitempty"`

	// Chart is the machine's own copy of its definition, stored
	// whole.  Replacing a chart in the warehouse must not affect a
	// running machine, and that holds across restarts too.
	Chart *chart.Node `json:"chart"`

	// At is the machine's active node.
	At string `json:"at"`

	// Bindings maps active node ids to their variable bindings.
	Bindings map[string]map[string]chart.Value `json:"bindings,omitempty"`

	// Deleted marks a machine to remove rather than write.
	//
	// Yes, this flag is a hack.
	Deleted bool `json:"-" yaml:"-"`
}

// Store is a persistence interface suitable for a warehouse and a
// fleet.
type Store interface {
	SaveChart(ctx context.Context, def *chart.Node) error
	RemoveChart(ctx context.Context, id string) error
	LoadCharts(ctx context.Context) ([]*chart.Node, error)

	// WriteMachines persists snapshots; entries with Deleted set
	// are removed instead.
	WriteMachines(ctx context.Context, mss []*MachineState) error
	LoadMachines(ctx context.Context) ([]*MachineState, error)
}
