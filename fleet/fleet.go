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

// Package fleet keeps track of running machines.
package fleet

import (
	"sort"
	"sync"

	"github.com/rabe42/state-machines/machine"
)

// Fleet is the registry of running machines.
//
// Each machine carries its own lock, so operations on one machine are
// serialized while operations on different machines never contend.
type Fleet struct {
	sync.RWMutex

	Id       string `json:"id"`
	machines map[string]*entry
}

type entry struct {
	sync.Mutex
	machine *machine.Machine
}

// NotFound occurs when an operation names a machine the fleet doesn't
// have.
type NotFound struct {
	Id string
}

func (e *NotFound) Error() string {
	return `machine "` + e.Id + `" not found`
}

// NewFleet makes an empty fleet.
func NewFleet(id string) *Fleet {
	return &Fleet{
		Id:       id,
		machines: make(map[string]*entry),
	}
}

// Add registers a machine under its id.
func (f *Fleet) Add(m *machine.Machine) {
	f.Lock()
	f.machines[m.Id] = &entry{machine: m}
	f.Unlock()
}

// Remove forgets a machine.
//
// An operation already waiting on the machine's lock still completes.
func (f *Fleet) Remove(id string) error {
	f.Lock()
	defer f.Unlock()
	if _, have := f.machines[id]; !have {
		return &NotFound{Id: id}
	}
	delete(f.machines, id)
	return nil
}

// WithMachine runs fn with the named machine while holding that
// machine's lock, so a whole operation (a transition plus its
// stabilization) is atomic per machine.
func (f *Fleet) WithMachine(id string, fn func(m *machine.Machine) error) error {
	f.RLock()
	e, have := f.machines[id]
	f.RUnlock()
	if !have {
		return &NotFound{Id: id}
	}
	e.Lock()
	defer e.Unlock()
	return fn(e.machine)
}

// Ids lists the registered machine ids, sorted.
func (f *Fleet) Ids() []string {
	f.RLock()
	ids := make([]string, 0, len(f.machines))
	for id := range f.machines {
		ids = append(ids, id)
	}
	f.RUnlock()
	sort.Strings(ids)
	return ids
}

// Size gives the number of registered machines.
func (f *Fleet) Size() int {
	f.RLock()
	n := len(f.machines)
	f.RUnlock()
	return n
}
