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

// Package journal records what happened to each machine: events
// offered, variables set, transitions fired, and errors.  The journal
// is append-only; the service's watch stream and its history queries
// both read from it.
package journal

import (
	"context"
	"time"
)

// Entry kinds.
const (
	KindEvent      = "event"
	KindSetVar     = "set-var"
	KindTransition = "transition"
	KindError      = "error"
)

// Entry is one journal record.
type Entry struct {
	// Seq is assigned on append, strictly increasing per journal.
	Seq int64 `json:"seq,omitempty"`

	MachineId string    `json:"machineId"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Event is the event id of an event entry.
	Event string `json:"event,omitempty"`

	// Variable and Value describe a set-var entry.
	Variable string `json:"variable,omitempty"`
	Value    string `json:"value,omitempty"`

	// From and To are the nodes of a transition entry.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Error is the message of an error entry.
	Error string `json:"error,omitempty"`
}

// Journal is an append-only operation log.
type Journal interface {
	Append(ctx context.Context, e *Entry) error

	// List returns a machine's entries with Seq greater than
	// afterSeq, oldest first, at most limit.
	List(ctx context.Context, machineId string, afterSeq int64, limit int) ([]*Entry, error)
}

// Event makes an event entry.
func Event(machineId, eventId string) *Entry {
	return &Entry{
		MachineId: machineId,
		Kind:      KindEvent,
		Timestamp: time.Now().UTC(),
		Event:     eventId,
	}
}

// SetVar makes a set-var entry.
func SetVar(machineId, variable, value string) *Entry {
	return &Entry{
		MachineId: machineId,
		Kind:      KindSetVar,
		Timestamp: time.Now().UTC(),
		Variable:  variable,
		Value:     value,
	}
}

// Transition makes a transition entry.
func Transition(machineId, from, to string) *Entry {
	return &Entry{
		MachineId: machineId,
		Kind:      KindTransition,
		Timestamp: time.Now().UTC(),
		From:      from,
		To:        to,
	}
}

// Error makes an error entry.
func Error(machineId string, err error) *Entry {
	return &Entry{
		MachineId: machineId,
		Kind:      KindError,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}

// Discard is a Journal that forgets everything.
type Discard struct{}

func (d Discard) Append(ctx context.Context, e *Entry) error {
	return nil
}

func (d Discard) List(ctx context.Context, machineId string, afterSeq int64, limit int) ([]*Entry, error) {
	return nil, nil
}
