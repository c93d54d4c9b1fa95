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

package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rabe42/state-machines/caps/goja"
	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/fleet"
	"github.com/rabe42/state-machines/journal"
	jsqlite "github.com/rabe42/state-machines/journal/sqlite"
	"github.com/rabe42/state-machines/warehouse"
	"github.com/rabe42/state-machines/warehouse/bolt"
)

func gateChart() *chart.Node {
	return &chart.Node{
		Id:        "scn:///Gate",
		StartNode: "scn:///Gate/Closed",
		Attributes: []*chart.VariableDeclaration{
			{Name: "count", Type: chart.TypeInteger, Value: chart.Integer(0)},
		},
		Nodes: []*chart.Node{
			{
				Id: "scn:///Gate/Closed",
				Transitions: []*chart.Transition{
					{
						Guard: &chart.Guard{Event: "sme:///gate/open"},
						To:    "scn:///Gate/Open",
					},
				},
			},
			{
				Id: "scn:///Gate/Open",
				Transitions: []*chart.Transition{
					{
						Guard: &chart.Guard{Event: "sme:///gate/close"},
						To:    "scn:///Gate/Closed",
					},
				},
			},
		},
	}
}

func TestServiceCharts(t *testing.T) {
	ctx := context.Background()
	s := NewService(Options{})

	id, err := s.PutChart(ctx, gateChart())
	if err != nil {
		t.Fatal(err)
	}
	if id != "scn:///Gate" {
		t.Fatal(id)
	}

	ids := s.ChartIds(ctx)
	if 1 != len(ids) || ids[0] != id {
		t.Fatal(ids)
	}

	def, err := s.GetChart(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if def.Id != id {
		t.Fatal(def.Id)
	}

	if err := s.RemoveChart(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetChart(ctx, id); err == nil {
		t.Fatal("expected an error")
	} else if _, is := err.(*warehouse.NotFound); !is {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestServiceMachines(t *testing.T) {
	ctx := context.Background()
	s := NewService(Options{})

	id, err := s.PutChart(ctx, gateChart())
	if err != nil {
		t.Fatal(err)
	}

	mid, rep, err := s.Start(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !fleet.ValidMachineId(mid) {
		t.Fatal(mid)
	}
	if rep.To != "scn:///Gate/Closed" {
		t.Fatal(rep.To)
	}
	if 1 != len(rep.Enabled) || rep.Enabled[0] != "sme:///gate/open" {
		t.Fatal(rep.Enabled)
	}

	mids := s.MachineIds(ctx)
	if 1 != len(mids) || mids[0] != mid {
		t.Fatal(mids)
	}

	rep, err = s.SendEvent(ctx, mid, "sme:///gate/open")
	if err != nil {
		t.Fatal(err)
	}
	if rep.To != "scn:///Gate/Open" {
		t.Fatal(rep.To)
	}

	ms, err := s.Status(ctx, mid)
	if err != nil {
		t.Fatal(err)
	}
	if ms.At != "scn:///Gate/Open" {
		t.Fatal(ms.At)
	}
	if !ms.Bindings["scn:///Gate"]["count"].Equal(chart.Integer(0)) {
		t.Fatal(ms.Bindings)
	}

	if _, err := s.SetVariable(ctx, mid, "count", chart.Integer(7)); err != nil {
		t.Fatal(err)
	}
	ms, err = s.Status(ctx, mid)
	if err != nil {
		t.Fatal(err)
	}
	if !ms.Bindings["scn:///Gate"]["count"].Equal(chart.Integer(7)) {
		t.Fatal(ms.Bindings)
	}

	events, err := s.EnabledEvents(ctx, mid)
	if err != nil {
		t.Fatal(err)
	}
	if 1 != len(events) || events[0] != "sme:///gate/close" {
		t.Fatal(events)
	}

	if err := s.RemoveMachine(ctx, mid); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SendEvent(ctx, mid, "sme:///gate/open"); err == nil {
		t.Fatal("expected an error")
	} else if _, is := err.(*fleet.NotFound); !is {
		t.Fatalf("got %T: %v", err, err)
	}

	if _, _, err := s.Start(ctx, "scn:///Nope"); err == nil {
		t.Fatal("expected an error")
	} else if _, is := err.(*warehouse.NotFound); !is {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestServiceJournal(t *testing.T) {
	ctx := context.Background()

	j, err := jsqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	s := NewService(Options{Journal: j})

	id, err := s.PutChart(ctx, gateChart())
	if err != nil {
		t.Fatal(err)
	}
	mid, _, err := s.Start(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SendEvent(ctx, mid, "sme:///gate/open"); err != nil {
		t.Fatal(err)
	}

	entries, err := s.History(ctx, mid, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if 3 != len(entries) {
		t.Fatal(entries)
	}

	if entries[0].Kind != journal.KindTransition || entries[0].From != "" || entries[0].To != "scn:///Gate/Closed" {
		t.Fatal(*entries[0])
	}
	if entries[1].Kind != journal.KindEvent || entries[1].Event != "sme:///gate/open" {
		t.Fatal(*entries[1])
	}
	if entries[2].Kind != journal.KindTransition || entries[2].From != "scn:///Gate/Closed" || entries[2].To != "scn:///Gate/Open" {
		t.Fatal(*entries[2])
	}
}

func TestServiceWatch(t *testing.T) {
	ctx := context.Background()
	s := NewService(Options{})

	id, err := s.PutChart(ctx, gateChart())
	if err != nil {
		t.Fatal(err)
	}
	mid, _, err := s.Start(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	c := s.watch(mid)
	defer s.unwatch(mid, c)

	if _, err := s.SendEvent(ctx, mid, "sme:///gate/open"); err != nil {
		t.Fatal(err)
	}

	e := <-c
	if e.Kind != journal.KindEvent || e.Event != "sme:///gate/open" {
		t.Fatal(*e)
	}
	e = <-c
	if e.Kind != journal.KindTransition || e.To != "scn:///Gate/Open" {
		t.Fatal(*e)
	}
}

func TestServiceBoot(t *testing.T) {
	ctx := context.Background()

	st := bolt.NewStore(filepath.Join(t.TempDir(), "warehouse.db"))
	if err := st.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer st.Close(ctx)

	s1 := NewService(Options{Store: st})
	id, err := s1.PutChart(ctx, gateChart())
	if err != nil {
		t.Fatal(err)
	}
	mid, _, err := s1.Start(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s1.SendEvent(ctx, mid, "sme:///gate/open"); err != nil {
		t.Fatal(err)
	}

	s2 := NewService(Options{Store: st})
	if err := s2.Boot(ctx); err != nil {
		t.Fatal(err)
	}

	ids := s2.ChartIds(ctx)
	if 1 != len(ids) || ids[0] != id {
		t.Fatal(ids)
	}

	ms, err := s2.Status(ctx, mid)
	if err != nil {
		t.Fatal(err)
	}
	if ms.At != "scn:///Gate/Open" {
		t.Fatal(ms.At)
	}

	// The restored machine still runs.
	rep, err := s2.SendEvent(ctx, mid, "sme:///gate/close")
	if err != nil {
		t.Fatal(err)
	}
	if rep.To != "scn:///Gate/Closed" {
		t.Fatal(rep.To)
	}
}

func TestServiceRegisterSource(t *testing.T) {
	ctx := context.Background()
	s := NewService(Options{})

	src := &goja.Source{
		Name: "big",
		Kind: "predicate",
		Code: "return 10 < _.params.n;",
	}
	if err := s.RegisterSource(ctx, src); err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, d := range s.Capabilities(ctx) {
		if d.Name == "big" && d.Kind == "predicate" {
			found = true
		}
	}
	if !found {
		t.Fatal("'big' not listed")
	}
}
