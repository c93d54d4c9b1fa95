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
	"strings"
	"testing"
	"time"
)

func TestTimersOnce(t *testing.T) {
	c := make(chan string)

	emit := func(ctx context.Context, machineId, eventId string) error {
		c <- machineId + " " + eventId
		return nil
	}

	ts := NewTimers(emit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	then := time.Now()

	te := &TimerEntry{
		Id:      "1",
		Machine: "m",
		Event:   "e",
		At:      time.Now().UTC().Add(100 * time.Millisecond),
	}
	if err := ts.Add(ctx, te); err != nil {
		t.Fatal(err)
	}

	dup := &TimerEntry{Id: "1", Machine: "m", Event: "e", At: te.At}
	if err := ts.Add(ctx, dup); err != TimerExists {
		t.Fatal(err)
	}

	if x := <-c; x != "m e" {
		t.Fatal(x)
	}
	elapsed := time.Now().Sub(then)
	if 2*time.Second < elapsed {
		t.Fatal(elapsed)
	} else if elapsed < 90*time.Millisecond {
		t.Fatal(elapsed)
	}

	later := &TimerEntry{
		Id:      "2",
		Machine: "m",
		Event:   "e",
		At:      time.Now().UTC().Add(time.Second),
	}
	if err := ts.Add(ctx, later); err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem(ctx, "2"); err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem(ctx, "2"); err != TimerNotFound {
		t.Fatal(err)
	}

	timeout := time.NewTimer(300 * time.Millisecond)
	select {
	case x := <-c:
		t.Fatal(x)
	case <-timeout.C:
	}
}

func TestTimersCron(t *testing.T) {
	c := make(chan string)

	emit := func(ctx context.Context, machineId, eventId string) error {
		c <- eventId
		return nil
	}

	ts := NewTimers(emit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := &TimerEntry{Id: "bad", Machine: "m", Event: "e", Cron: "bogus"}
	if err := ts.Add(ctx, bad); err == nil {
		t.Fatal("expected an error")
	}

	// Every second.
	te := &TimerEntry{Id: "tick", Machine: "m", Event: "e", Cron: "* * * * * *"}
	if err := ts.Add(ctx, te); err != nil {
		t.Fatal(err)
	}

	// A cron timer re-arms, so it fires more than once.
	for i := 0; i < 2; i++ {
		timeout := time.NewTimer(3 * time.Second)
		select {
		case <-c:
		case <-timeout.C:
			t.Fatal("cron timer never fired")
		}
	}

	if err := ts.Rem(ctx, "tick"); err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem(ctx, "tick"); err != TimerNotFound {
		t.Fatal(err)
	}
}

func TestTimersMarshal(t *testing.T) {
	ts := NewTimers(func(ctx context.Context, machineId, eventId string) error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	te := &TimerEntry{
		Id:      "later",
		Machine: "m",
		Event:   "e",
		At:      time.Now().UTC().Add(time.Hour),
	}
	if err := ts.Add(ctx, te); err != nil {
		t.Fatal(err)
	}

	bs, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bs), `"later"`) {
		t.Fatalf("timer missing: %s", bs)
	}
}

func TestTimersShutdown(t *testing.T) {
	c := make(chan string, 1)

	ts := NewTimers(func(ctx context.Context, machineId, eventId string) error {
		c <- eventId
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	te := &TimerEntry{
		Id:      "doomed",
		Machine: "m",
		Event:   "e",
		At:      time.Now().UTC().Add(time.Second),
	}
	if err := ts.Add(ctx, te); err != nil {
		t.Fatal(err)
	}

	if err := ts.Shutdown(); err != nil {
		t.Fatal(err)
	}

	timeout := time.NewTimer(1500 * time.Millisecond)
	select {
	case x := <-c:
		t.Fatal(x)
	case <-timeout.C:
	}
}
