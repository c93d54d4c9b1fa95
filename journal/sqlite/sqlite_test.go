package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rabe42/state-machines/journal"
)

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	a := "sms:///11111111-2222-3333-4444-555555555555/Gate"
	b := "sms:///66666666-7777-8888-9999-000000000000/Gate"

	writes := []*journal.Entry{
		journal.Event(a, "sme:///gate/open"),
		journal.Transition(a, "scn:///Gate/Closed", "scn:///Gate/Open"),
		journal.SetVar(a, "count", "3"),
		journal.Error(a, errors.New("broke")),
		journal.Event(b, "sme:///gate/open"),
	}
	for _, e := range writes {
		if err := j.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
		if e.Seq <= 0 {
			t.Fatal(e.Seq)
		}
	}

	entries, err := j.List(ctx, a, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if 4 != len(entries) {
		t.Fatal(entries)
	}

	kinds := []string{journal.KindEvent, journal.KindTransition, journal.KindSetVar, journal.KindError}
	for i, e := range entries {
		if e.Kind != kinds[i] {
			t.Fatal(e.Kind)
		}
		if e.MachineId != a {
			t.Fatal(e.MachineId)
		}
		if e.Timestamp.IsZero() {
			t.Fatal("no timestamp")
		}
		if 0 < i && entries[i-1].Seq >= e.Seq {
			t.Fatal("entries out of order")
		}
	}

	if entries[1].From != "scn:///Gate/Closed" || entries[1].To != "scn:///Gate/Open" {
		t.Fatal(*entries[1])
	}
	if entries[2].Variable != "count" || entries[2].Value != "3" {
		t.Fatal(*entries[2])
	}
	if entries[3].Error != "broke" {
		t.Fatal(*entries[3])
	}
}

func TestJournalAfterSeq(t *testing.T) {
	ctx := context.Background()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	mid := "sms:///11111111-2222-3333-4444-555555555555/Gate"

	var second int64
	for i := 0; i < 4; i++ {
		e := journal.Event(mid, "sme:///gate/open")
		if err := j.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
		if 1 == i {
			second = e.Seq
		}
	}

	entries, err := j.List(ctx, mid, second, 10)
	if err != nil {
		t.Fatal(err)
	}
	if 2 != len(entries) {
		t.Fatal(entries)
	}
	for _, e := range entries {
		if e.Seq <= second {
			t.Fatal(e.Seq)
		}
	}
}

func TestJournalLimit(t *testing.T) {
	ctx := context.Background()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	mid := "sms:///11111111-2222-3333-4444-555555555555/Gate"
	for i := 0; i < 5; i++ {
		if err := j.Append(ctx, journal.Event(mid, "sme:///gate/open")); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := j.List(ctx, mid, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if 2 != len(entries) {
		t.Fatal(entries)
	}
}

func TestJournalNil(t *testing.T) {
	ctx := context.Background()

	var j *Journal

	if err := j.Append(ctx, journal.Event("sms:///x/Gate", "sme:///gate/open")); err != nil {
		t.Fatal(err)
	}
	entries, err := j.List(ctx, "sms:///x/Gate", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if nil != entries {
		t.Fatal(entries)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestJournalBadPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected an error")
	}
}
