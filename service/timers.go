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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	log "github.com/sirupsen/logrus"
)

var (
	TimerExists   = errors.New("timer id exists")
	TimerNotFound = errors.New("timer not found")
)

// Emitter delivers a timer's event to a machine.
type Emitter func(ctx context.Context, machineId, eventId string) error

// TimerEntry is one scheduled event delivery.
type TimerEntry struct {
	Id      string    `json:"id"`
	Machine string    `json:"machine"`
	Event   string    `json:"event"`
	At      time.Time `json:"at"`

	// Cron, when set, re-arms the timer after each firing.
	Cron string `json:"cron,omitempty"`

	expr *cronexpr.Expression
	ctl  chan bool
}

// Timers delivers events to machines later: once at a given time, or
// repeatedly on a cron schedule.
type Timers struct {
	sync.Mutex

	timers map[string]*TimerEntry
	ctl    chan bool
	emit   Emitter
}

func NewTimers(emit Emitter) *Timers {
	return &Timers{
		timers: make(map[string]*TimerEntry, 32),
		emit:   emit,
		ctl:    make(chan bool),
	}
}

func (ts *Timers) MarshalJSON() ([]byte, error) {
	ts.Lock()
	m := map[string]interface{}{
		"map": ts.timers,
	}
	bs, err := json.Marshal(&m)
	ts.Unlock()
	return bs, err
}

// Add schedules a timer.  An entry with a Cron expression fires on
// that schedule until removed; otherwise it fires once at At.
func (ts *Timers) Add(ctx context.Context, te *TimerEntry) error {
	if "" != te.Cron {
		expr, err := cronexpr.Parse(te.Cron)
		if err != nil {
			return err
		}
		te.expr = expr
		te.At = expr.Next(time.Now().UTC())
		if te.At.IsZero() {
			return fmt.Errorf("cron %q never fires", te.Cron)
		}
	}

	ts.Lock()
	defer ts.Unlock()

	if _, have := ts.timers[te.Id]; have {
		return TimerExists
	}

	te.ctl = make(chan bool)
	ts.timers[te.Id] = te

	stop := func() {
		if err := ts.Rem(ctx, te.Id); err != nil {
			log.WithError(err).WithField("timer", te.Id).Warn("timer removal failed")
		}
	}

	go func() {
		for {
			timer := time.NewTimer(time.Until(te.At))
			select {
			case <-ctx.Done():
				stop()
				return
			case <-te.ctl:
				// We only get here via a Rem() call.
				return
			case <-ts.ctl:
				stop()
				return
			case <-timer.C:
				log.WithFields(log.Fields{
					"timer":   te.Id,
					"machine": te.Machine,
					"event":   te.Event,
				}).Info("timer fired")
				if err := ts.emit(ctx, te.Machine, te.Event); err != nil {
					log.WithError(err).WithField("timer", te.Id).Warn("timer emit failed")
				}

				var next time.Time
				if te.expr != nil {
					next = te.expr.Next(time.Now().UTC())
				}

				ts.Lock()
				if next.IsZero() {
					delete(ts.timers, te.Id)
				} else {
					te.At = next
				}
				ts.Unlock()

				if next.IsZero() {
					return
				}
			}
		}
	}()

	return nil
}

// Rem cancels a timer.
func (ts *Timers) Rem(ctx context.Context, id string) error {
	ts.Lock()
	defer ts.Unlock()

	te, have := ts.timers[id]
	if !have {
		return TimerNotFound
	}

	delete(ts.timers, id)

	close(te.ctl)

	return nil
}

// Shutdown cancels all timers.
func (ts *Timers) Shutdown() error {
	close(ts.ctl)
	return nil
}
