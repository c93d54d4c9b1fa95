package fleet

import (
	"strings"
	"sync"
	"testing"

	"github.com/rabe42/state-machines/machine"
)

func TestFleetWithMachine(t *testing.T) {
	f := NewFleet("test")
	f.Add(&machine.Machine{Id: "sms:///1/Task"})

	var saw string
	err := f.WithMachine("sms:///1/Task", func(m *machine.Machine) error {
		saw = m.Id
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if saw != "sms:///1/Task" {
		t.Fatalf("saw %s", saw)
	}
}

func TestFleetNotFound(t *testing.T) {
	f := NewFleet("test")
	err := f.WithMachine("sms:///nope/Task", func(m *machine.Machine) error {
		t.Fatal("shouldn't run")
		return nil
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, is := err.(*NotFound); !is {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestFleetRemove(t *testing.T) {
	f := NewFleet("test")
	f.Add(&machine.Machine{Id: "sms:///1/Task"})

	if err := f.Remove("sms:///1/Task"); err != nil {
		t.Fatal(err)
	}
	if err := f.Remove("sms:///1/Task"); err == nil {
		t.Fatal("removed twice")
	}
	if f.Size() != 0 {
		t.Fatalf("fleet still has %d machines", f.Size())
	}
}

func TestFleetIds(t *testing.T) {
	f := NewFleet("test")
	f.Add(&machine.Machine{Id: "sms:///b/Task"})
	f.Add(&machine.Machine{Id: "sms:///a/Task"})

	ids := f.Ids()
	if len(ids) != 2 || ids[0] != "sms:///a/Task" || ids[1] != "sms:///b/Task" {
		t.Fatalf("got %v", ids)
	}
}

func TestFleetSerializesPerMachine(t *testing.T) {
	f := NewFleet("test")
	f.Add(&machine.Machine{Id: "sms:///1/Task"})

	// The counter is only safe because WithMachine serializes.
	var (
		count int
		wg    sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.WithMachine("sms:///1/Task", func(m *machine.Machine) error {
				count++
				return nil
			})
		}()
	}
	wg.Wait()

	if count != 100 {
		t.Fatalf("count is %d", count)
	}
}

func TestNewMachineId(t *testing.T) {
	id, err := NewMachineId("scn:///Task/Sub")
	if err != nil {
		t.Fatal(err)
	}
	if !ValidMachineId(id) {
		t.Fatalf("minted a bad id: %s", id)
	}
	if !strings.HasSuffix(id, "/Task/Sub") {
		t.Fatalf("id lost the chart path: %s", id)
	}

	other, err := NewMachineId("scn:///Task/Sub")
	if err != nil {
		t.Fatal(err)
	}
	if id == other {
		t.Fatal("two machines got the same id")
	}

	if _, err = NewMachineId("not-a-chart-id"); err == nil {
		t.Fatal("accepted a bad chart id")
	}
}
