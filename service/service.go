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

// Package service hosts a warehouse of charts and a fleet of running
// machines behind HTTP, WebSocket, and MQTT front ends.
//
// The service owns the plumbing the engine stays out of: journaling,
// persistence, watch streams, timers, and logging.
package service

import (
	"context"
	"sync"

	"github.com/rabe42/state-machines/caps"
	"github.com/rabe42/state-machines/caps/goja"
	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/fleet"
	"github.com/rabe42/state-machines/journal"
	"github.com/rabe42/state-machines/machine"
	"github.com/rabe42/state-machines/warehouse"

	log "github.com/sirupsen/logrus"
)

// Options configures a Service.  The zero value works: an in-memory
// service with the prelude capabilities and no persistence.
type Options struct {
	// FleetId names the fleet (for logs and persistence).
	FleetId string

	// Ctl bounds machine stabilization.  Nil means
	// machine.DefaultControl.
	Ctl *machine.Control

	// Caps is the capability registry machines call into.  Nil
	// means caps.Prelude().
	Caps *caps.Registry

	// Store persists charts and machine snapshots.  Nil means no
	// persistence.
	Store warehouse.Store

	// Journal records machine operations.  Nil means no journal.
	Journal journal.Journal

	// Interp compiles scripted capabilities.  Nil means a default
	// interpreter.
	Interp *goja.Interpreter

	// StaticDir is a directory served under /static/.  Empty means
	// no static files.
	StaticDir string
}

type Service struct {
	warehouse *warehouse.Warehouse
	fleet     *fleet.Fleet
	caps      *caps.Registry
	journal   journal.Journal
	store     warehouse.Store
	ctl       *machine.Control
	interp    *goja.Interpreter
	timers    *Timers
	staticDir string

	watchers struct {
		sync.Mutex
		chans map[string]map[chan *journal.Entry]bool

		// firehose gets every entry, for the MQTT bridge.
		firehose chan *journal.Entry
	}
}

func NewService(opts Options) *Service {
	if "" == opts.FleetId {
		opts.FleetId = "floor"
	}
	if opts.Caps == nil {
		opts.Caps = caps.Prelude()
	}
	if opts.Store == nil {
		opts.Store = &warehouse.NoopStore{}
	}
	if opts.Journal == nil {
		opts.Journal = journal.Discard{}
	}
	if opts.Interp == nil {
		opts.Interp = goja.NewInterpreter()
	}

	s := &Service{
		warehouse: warehouse.NewWarehouse(),
		fleet:     fleet.NewFleet(opts.FleetId),
		caps:      opts.Caps,
		journal:   opts.Journal,
		store:     opts.Store,
		ctl:       opts.Ctl,
		interp:    opts.Interp,
		staticDir: opts.StaticDir,
	}
	s.watchers.chans = make(map[string]map[chan *journal.Entry]bool)

	s.timers = NewTimers(func(ctx context.Context, machineId, eventId string) error {
		_, err := s.SendEvent(ctx, machineId, eventId)
		return err
	})

	return s
}

// Boot loads persisted charts and machine snapshots.  A snapshot that
// no longer restores is logged and skipped; one broken machine
// shouldn't keep the rest down.
func (s *Service) Boot(ctx context.Context) error {
	defs, err := s.store.LoadCharts(ctx)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if _, err := s.warehouse.Put(def); err != nil {
			log.WithError(err).WithField("chart", def.Id).Warn("persisted chart not loaded")
		}
	}

	mss, err := s.store.LoadMachines(ctx)
	if err != nil {
		return err
	}
	for _, ms := range mss {
		m, err := machine.Restore(ms.Id, ms.Chart, ms.At, ms.Bindings, s.caps, s.ctl)
		if err != nil {
			log.WithError(err).WithField("machine", ms.Id).Warn("snapshot not restored")
			continue
		}
		s.fleet.Add(m)
	}

	log.WithFields(log.Fields{
		"charts":   len(s.warehouse.Ids()),
		"machines": s.fleet.Size(),
	}).Info("booted")

	return nil
}

// Shutdown stops the timers.  The stores are closed by whoever opened
// them.
func (s *Service) Shutdown() {
	s.timers.Shutdown()
}

// PutChart validates a chart definition, stores it, and persists it.
func (s *Service) PutChart(ctx context.Context, def *chart.Node) (string, error) {
	id, err := s.warehouse.Put(def)
	if err != nil {
		return "", err
	}
	if err := s.store.SaveChart(ctx, def); err != nil {
		log.WithError(err).WithField("chart", id).Warn("chart not persisted")
	}
	log.WithField("chart", id).Info("chart stored")
	return id, nil
}

// ChartIds lists the stored chart ids.
func (s *Service) ChartIds(ctx context.Context) []string {
	return s.warehouse.Ids()
}

// GetChart returns a stored chart definition.
func (s *Service) GetChart(ctx context.Context, id string) (*chart.Node, error) {
	return s.warehouse.Get(id)
}

// RemoveChart forgets a chart definition.  Machines already running
// it keep their own copies.
func (s *Service) RemoveChart(ctx context.Context, id string) error {
	if err := s.warehouse.Remove(id); err != nil {
		return err
	}
	if err := s.store.RemoveChart(ctx, id); err != nil {
		log.WithError(err).WithField("chart", id).Warn("chart removal not persisted")
	}
	return nil
}

// Capabilities lists the registered capability declarations.
func (s *Service) Capabilities(ctx context.Context) []caps.Decl {
	return s.caps.Capabilities()
}

// RegisterSource compiles a scripted capability and adds it to the
// registry, shadowing any capability with the same name.
func (s *Service) RegisterSource(ctx context.Context, src *goja.Source) error {
	if err := s.interp.Register(ctx, s.caps, src); err != nil {
		return err
	}
	log.WithFields(log.Fields{"name": src.Name, "kind": src.Kind}).Info("capability registered")
	return nil
}

// Start makes a machine from a stored chart, starts it, and adds it
// to the fleet.  It returns the new machine id.
func (s *Service) Start(ctx context.Context, chartId string) (string, *machine.Report, error) {
	def, err := s.warehouse.Get(chartId)
	if err != nil {
		return "", nil, err
	}

	mid, err := fleet.NewMachineId(def.Id)
	if err != nil {
		return "", nil, err
	}

	m, err := machine.New(mid, def, s.caps, s.ctl)
	if err != nil {
		return "", nil, err
	}

	rep, err := m.Start(ctx)
	if err != nil {
		s.record(ctx, journal.Error(mid, err))
		return "", nil, err
	}

	s.fleet.Add(m)
	s.persist(ctx, m)
	s.recordReport(ctx, mid, rep)

	log.WithFields(log.Fields{"machine": mid, "at": m.At}).Info("machine started")

	return mid, rep, nil
}

// SendEvent offers an event to a machine.
func (s *Service) SendEvent(ctx context.Context, mid, eventId string) (*machine.Report, error) {
	var rep *machine.Report
	err := s.fleet.WithMachine(mid, func(m *machine.Machine) error {
		s.record(ctx, journal.Event(mid, eventId))
		var err error
		if rep, err = m.SendEvent(ctx, eventId); err != nil {
			s.record(ctx, journal.Error(mid, err))
			return err
		}
		s.persist(ctx, m)
		s.recordReport(ctx, mid, rep)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// SetVariable sets a variable of a machine.
func (s *Service) SetVariable(ctx context.Context, mid, name string, v chart.Value) (*machine.Report, error) {
	var rep *machine.Report
	err := s.fleet.WithMachine(mid, func(m *machine.Machine) error {
		s.record(ctx, journal.SetVar(mid, name, v.String()))
		var err error
		if rep, err = m.SetVariable(ctx, name, v); err != nil {
			s.record(ctx, journal.Error(mid, err))
			return err
		}
		s.persist(ctx, m)
		s.recordReport(ctx, mid, rep)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// EnabledEvents reports which events could currently fire a
// transition of a machine.
func (s *Service) EnabledEvents(ctx context.Context, mid string) ([]string, error) {
	var events []string
	err := s.fleet.WithMachine(mid, func(m *machine.Machine) error {
		var err error
		events, err = m.EnabledEvents(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Status reports where a machine is and what its variables hold.
func (s *Service) Status(ctx context.Context, mid string) (*warehouse.MachineState, error) {
	var ms *warehouse.MachineState
	err := s.fleet.WithMachine(mid, func(m *machine.Machine) error {
		ms = &warehouse.MachineState{
			Id:       m.Id,
			At:       m.At,
			Bindings: m.Scopes.Bindings(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ms, nil
}

// MachineIds lists the running machines.
func (s *Service) MachineIds(ctx context.Context) []string {
	return s.fleet.Ids()
}

// RemoveMachine takes a machine out of the fleet and drops its
// snapshot.
func (s *Service) RemoveMachine(ctx context.Context, mid string) error {
	if err := s.fleet.Remove(mid); err != nil {
		return err
	}
	ms := &warehouse.MachineState{
		Id:      mid,
		Deleted: true,
	}
	if err := s.store.WriteMachines(ctx, []*warehouse.MachineState{ms}); err != nil {
		log.WithError(err).WithField("machine", mid).Warn("machine removal not persisted")
	}
	return nil
}

// History returns a machine's journal entries after the given
// sequence number.
func (s *Service) History(ctx context.Context, mid string, afterSeq int64, limit int) ([]*journal.Entry, error) {
	return s.journal.List(ctx, mid, afterSeq, limit)
}

func (s *Service) persist(ctx context.Context, m *machine.Machine) {
	ms := &warehouse.MachineState{
		Id:       m.Id,
		Chart:    m.Chart.Root(),
		At:       m.At,
		Bindings: m.Scopes.Bindings(),
	}
	if err := s.store.WriteMachines(ctx, []*warehouse.MachineState{ms}); err != nil {
		log.WithError(err).WithField("machine", m.Id).Warn("snapshot not persisted")
	}
}

// record appends a journal entry and hands it to the machine's
// watchers.
func (s *Service) record(ctx context.Context, e *journal.Entry) {
	if err := s.journal.Append(ctx, e); err != nil {
		log.WithError(err).WithField("machine", e.MachineId).Warn("journal append failed")
	}
	s.notify(e)
}

// recordReport turns a report into transition entries: the initial
// placement, if any, and then one entry per firing.
func (s *Service) recordReport(ctx context.Context, mid string, rep *machine.Report) {
	if rep == nil {
		return
	}
	at := rep.From
	for _, f := range rep.Fired {
		if at != f.From {
			s.record(ctx, journal.Transition(mid, at, f.From))
		}
		s.record(ctx, journal.Transition(mid, f.From, f.To))
		at = f.To
	}
	if at != rep.To {
		s.record(ctx, journal.Transition(mid, at, rep.To))
	}
}

// watch subscribes to a machine's journal entries.  The channel is
// buffered; a watcher that falls behind loses entries.
func (s *Service) watch(mid string) chan *journal.Entry {
	c := make(chan *journal.Entry, 32)
	s.watchers.Lock()
	cs, have := s.watchers.chans[mid]
	if !have {
		cs = make(map[chan *journal.Entry]bool)
		s.watchers.chans[mid] = cs
	}
	cs[c] = true
	s.watchers.Unlock()
	return c
}

func (s *Service) unwatch(mid string, c chan *journal.Entry) {
	s.watchers.Lock()
	if cs, have := s.watchers.chans[mid]; have {
		delete(cs, c)
		if 0 == len(cs) {
			delete(s.watchers.chans, mid)
		}
	}
	s.watchers.Unlock()
}

func (s *Service) setFirehose(c chan *journal.Entry) {
	s.watchers.Lock()
	s.watchers.firehose = c
	s.watchers.Unlock()
}

func (s *Service) notify(e *journal.Entry) {
	s.watchers.Lock()
	for c := range s.watchers.chans[e.MachineId] {
		select {
		case c <- e:
		default:
			log.WithField("machine", e.MachineId).Warn("watcher blocked")
		}
	}
	if s.watchers.firehose != nil {
		select {
		case s.watchers.firehose <- e:
		default:
			log.Warn("firehose blocked")
		}
	}
	s.watchers.Unlock()
}
