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

package journal

import (
	"context"
	"errors"
	"testing"
)

func TestEntryConstructors(t *testing.T) {
	mid := "sms:///11111111-2222-3333-4444-555555555555/Gate"

	e := Event(mid, "sme:///gate/open")
	if e.Kind != KindEvent || e.Event != "sme:///gate/open" || e.MachineId != mid {
		t.Fatal(*e)
	}
	if e.Timestamp.IsZero() {
		t.Fatal("no timestamp")
	}

	e = SetVar(mid, "count", "3")
	if e.Kind != KindSetVar || e.Variable != "count" || e.Value != "3" {
		t.Fatal(*e)
	}

	e = Transition(mid, "scn:///Gate/Closed", "scn:///Gate/Open")
	if e.Kind != KindTransition || e.From != "scn:///Gate/Closed" || e.To != "scn:///Gate/Open" {
		t.Fatal(*e)
	}

	e = Error(mid, errors.New("broke"))
	if e.Kind != KindError || e.Error != "broke" {
		t.Fatal(*e)
	}
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()

	var j Journal = Discard{}

	if err := j.Append(ctx, Event("sms:///x/Gate", "sme:///gate/open")); err != nil {
		t.Fatal(err)
	}

	entries, err := j.List(ctx, "sms:///x/Gate", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if 0 != len(entries) {
		t.Fatal(entries)
	}
}
